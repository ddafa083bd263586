package api

import (
	"context"
	"net"
	"time"

	"github.com/fasthttp/router"
	"github.com/surgehq/surge/internal/coordinator"
	"github.com/surgehq/surge/internal/metrics"
	"github.com/surgehq/surge/pkg/log"
	"github.com/valyala/fasthttp"
)

const (
	Prefix = "/api/v1/loadtests"

	// MaxBodySize bounds definition uploads
	MaxBodySize = 4 * 1024 * 1024
)

// Server exposes the coordinator over HTTP
type Server struct {
	coord   *coordinator.Coordinator
	metrics *metrics.Metrics
	router  *router.Router
}

// New creates the API. /metrics is served from the coordinator's collectors when it has any
func New(c *coordinator.Coordinator) *Server {
	m := c.Metrics()
	s := &Server{coord: c, metrics: m, router: router.New()}

	r := s.router
	r.POST(Prefix, s.create)
	r.GET(Prefix, s.list)
	r.GET(Prefix+"/{id}", s.get)
	r.DELETE(Prefix+"/{id}", s.delete)
	r.POST(Prefix+"/{id}/start", s.start)
	r.POST(Prefix+"/{id}/stop", s.stop)
	r.GET(Prefix+"/{id}/status", s.status)
	r.GET("/healthz", s.healthz)
	if m != nil {
		r.GET("/metrics", m.Handler())
	}
	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, fasthttp.StatusNotFound, &Error{Kind: KindNotFound, Message: "no route for " + string(ctx.Path())})
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, &Error{Kind: KindValidation, Message: "method not allowed"})
	}
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, v interface{}) {
		log.Error().Interface("panic", v).Bytes("path", ctx.Path()).Msg("recovered panic in handler")
		writeError(ctx, fasthttp.StatusInternalServerError, &Error{Kind: KindInternal, Message: "internal error"})
	}
	return s
}

// Handler returns the root request handler with request logging
func (s *Server) Handler() fasthttp.RequestHandler {
	h := s.router.Handler
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		h(ctx)
		log.Debug().
			Bytes("method", ctx.Method()).
			Bytes("uri", ctx.RequestURI()).
			Int("sc", ctx.Response.StatusCode()).
			Dur("took", time.Since(start)).
			Msg("api request")
	}
}

func (s *Server) newServer() *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "surge",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxRequestBodySize: MaxBodySize,
	}
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts the server down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := s.newServer()
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("api listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info().Msg("api shutting down")
		if err := srv.Shutdown(); err != nil {
			return err
		}
		return <-errc
	}
}
