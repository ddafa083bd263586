package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/router"
	"github.com/surgehq/surge/pkg/log"
	"github.com/valyala/fasthttp"
)

const (
	maxSlow = time.Minute
)

var (
	requestCount count32
	hangRelease  = make(chan struct{})
)

type count32 struct {
	val uint32
}

func (c *count32) increment() {
	atomic.AddUint32(&c.val, 1)
}

func (c *count32) get() uint32 {
	return atomic.LoadUint32(&c.val)
}

func PreRequest() {
	requestCount.increment()
}

func OK(ctx *fasthttp.RequestCtx) {
	PreRequest()
	ctx.WriteString("ok")
}

func Fail(ctx *fasthttp.RequestCtx) {
	PreRequest()
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.WriteString("fail")
}

func Slow(ctx *fasthttp.RequestCtx) {
	PreRequest()
	ms, err := strconv.Atoi(ctx.UserValue("ms").(string))
	if err != nil || ms < 0 {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		fmt.Fprintf(ctx, "invalid delay %q\n", ctx.UserValue("ms"))
		return
	}
	d := time.Duration(ms) * time.Millisecond
	if d > maxSlow {
		d = maxSlow
	}
	time.Sleep(d)
	fmt.Fprintf(ctx, "slept %s\n", d)
}

// Hang never writes a response. The handler parks until the process exits
func Hang(ctx *fasthttp.RequestCtx) {
	PreRequest()
	<-hangRelease
}

func Status(ctx *fasthttp.RequestCtx) {
	PreRequest()
	code, err := strconv.Atoi(ctx.UserValue("code").(string))
	if err != nil || code < 100 || code > 599 {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		fmt.Fprintf(ctx, "invalid status %q\n", ctx.UserValue("code"))
		return
	}
	ctx.SetStatusCode(code)
	fmt.Fprintf(ctx, "status %d\n", code)
}

func WildcardResponder(ctx *fasthttp.RequestCtx) {
	PreRequest()

	log.Debug().
		Bytes("method", ctx.Method()).
		Bytes("uri", ctx.RequestURI()).Msg("got request")
	fmt.Fprintf(ctx, "%s %s\n", ctx.Method(), ctx.RequestURI())
}

func StatsFunc(end <-chan bool) {
	// rolling average
	lastRequest := time.Now()
	lastRequestCount := requestCount.get()
	rpsPeak := float64(0)
	for {
		select {
		case <-end:
			fmt.Println("\nTerminating.")
			return
		default:
			timeDiff := time.Since(lastRequest).Seconds()
			curRequestCount := requestCount.get()
			requestCountDiff := curRequestCount - lastRequestCount
			rps := float64(requestCountDiff) / timeDiff
			if rps > rpsPeak {
				rpsPeak = rps
			}

			fmt.Printf("Total Requests: %d. Requests since last checkin: %d. RPS: %f. Peak: %f\t\t\t\t\r", curRequestCount, requestCountDiff, rps, rpsPeak)
			lastRequest = time.Now()
			lastRequestCount = curRequestCount
			time.Sleep(1 * time.Second)
		}
	}
}

func main() {
	var portRange string
	flag.StringVar(&portRange, "p", "14000-14001", "Range of ports to start servers on")
	flag.Parse()

	flagParts := strings.Split(portRange, "-")
	if len(flagParts) != 2 {
		log.Fatal().Msg("Invalid portRange. Format should be <int>-<int>")
	}

	startPort, err := strconv.Atoi(flagParts[0])
	if err != nil {
		log.Fatal().Msgf("Unable to parse port: %s", err)
	}

	endPort, err := strconv.Atoi(flagParts[1])
	if err != nil {
		log.Fatal().Msgf("Unable to parse port: %s", err)
	}

	r := router.New()
	r.GET("/ok", OK)
	r.GET("/fail", Fail)
	r.GET("/slow/{ms}", Slow)
	r.GET("/hang", Hang)
	for _, m := range []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"} {
		r.Handle(m, "/status/{code}", Status)
	}
	r.Handle("*", "/{req:*}", WildcardResponder)

	var wg sync.WaitGroup
	for i := startPort; i < endPort; i++ {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			s := &fasthttp.Server{
				Handler:     r.Handler,
				Name:        "surge-target",
				Concurrency: 256 * 1024,
			}
			Host := fmt.Sprintf(":%d", port)
			log.Fatal().Err(s.ListenAndServe(Host)).Msg("failed to start server")
		}(i)
	}
	statsFunc := make(chan bool)

	go StatsFunc(statsFunc)
	wg.Wait()

	statsFunc <- true
	close(statsFunc)
}
