package http

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/log"
	"github.com/valyala/fasthttp"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxConnsPerHost = 512
	DefaultUserAgent       = "surge"
)

// Config provides all the options available to the invoker
type Config struct {
	// Timeout bounds a single invocation from dial to the last byte of the response. A hung target
	// therefore cannot stall a batch for longer than this
	Timeout time.Duration `toml:"timeout" json:"timeout" mapstructure:"timeout"`
	// MaxConnsPerHost caps the connection pool. Invocations beyond the cap wait for a free
	// connection for at most Timeout
	MaxConnsPerHost    int    `toml:"max_conns_per_host" json:"max_conns_per_host" mapstructure:"max_conns_per_host"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	UserAgent          string `toml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		MaxConnsPerHost: DefaultMaxConnsPerHost,
		UserAgent:       DefaultUserAgent,
	}
}

// HTTPClient is a type alias for the actual client we use.
// The target of a definition is arbitrary so we use the multi host client rather than a HostClient
type HTTPClient = fasthttp.Client

// NewHTTPClient will create a fasthttp client configured for load generation. Retries are disabled
// so that one invocation is exactly one request on the wire
func NewHTTPClient(c Config) *HTTPClient {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxConnsPerHost <= 0 {
		c.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	return &HTTPClient{
		Name:                      c.UserAgent,
		NoDefaultUserAgentHeader:  c.UserAgent == "",
		ReadTimeout:               c.Timeout,
		WriteTimeout:              c.Timeout,
		MaxConnsPerHost:           c.MaxConnsPerHost,
		MaxConnWaitTimeout:        c.Timeout,
		MaxIdemponentCallAttempts: 1,
		TLSConfig: &tls.Config{
			InsecureSkipVerify: c.InsecureSkipVerify,
		},
	}
}

// Invoker performs single invocations against a target. It is safe for concurrent use
type Invoker struct {
	client  *HTTPClient
	timeout time.Duration
}

// NewInvoker creates an invoker with its own connection pool
func NewInvoker(c Config) *Invoker {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return &Invoker{
		client:  NewHTTPClient(c),
		timeout: c.Timeout,
	}
}

// Timeout returns the per invocation bound
func (i *Invoker) Timeout() time.Duration {
	return i.timeout
}

// Invoke performs the request for invocation seq and always returns an Outcome. Failures of any
// kind, including a panic inside fasthttp, become a failed Outcome rather than an error
func (i *Invoker) Invoke(req *CompiledRequest, seq int64) (o Outcome) {
	o.Seq = seq
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.StatusCode = 0
			o.Succeeded = false
			o.Latency = time.Since(start)
			o.Err = &errors2.InvocationError{Kind: errors2.KindPanic, Err: fmt.Errorf("%v", r)}
			log.Error().Interface("panic", r).Int64("seq", seq).Msg("recovered panic in invocation")
		}
	}()

	var (
		freq  = fasthttp.AcquireRequest()
		fresp = fasthttp.AcquireResponse()
	)
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	if err := req.WriteRequest(freq, seq); err != nil {
		o.Latency = time.Since(start)
		o.Err = &errors2.InvocationError{Kind: errors2.KindInvalidRequest, Err: err}
		return o
	}

	// the body is read off the wire to complete the exchange but not retained
	err := i.client.DoTimeout(freq, fresp, i.timeout)
	o.Latency = time.Since(start)
	if err != nil {
		o.Err = &errors2.InvocationError{Kind: Classify(err), Err: err}
		log.Trace().Err(err).Int64("seq", seq).Str("url", req.URL()).Msg("failed request")
		return o
	}

	o.StatusCode = fresp.StatusCode()
	o.Succeeded = StatusSucceeded(o.StatusCode)
	return o
}

// Classify maps a transport error to its ErrorKind
func Classify(err error) errors2.ErrorKind {
	if err == nil {
		return ""
	}

	var (
		nerr  net.Error
		dnerr *net.DNSError
		cerr  x509.CertificateInvalidError
		uerr  x509.UnknownAuthorityError
		herr  x509.HostnameError
		rherr tls.RecordHeaderError
	)
	switch {
	case errors.Is(err, fasthttp.ErrTimeout), errors.Is(err, fasthttp.ErrDialTimeout):
		return errors2.KindTimeout
	case errors.As(err, &dnerr):
		return errors2.KindDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return errors2.KindConnRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return errors2.KindConnReset
	case errors.As(err, &cerr), errors.As(err, &uerr), errors.As(err, &herr), errors.As(err, &rherr):
		return errors2.KindTLS
	case errors.As(err, &nerr) && nerr.Timeout():
		return errors2.KindTimeout
	}

	// fasthttp flattens some dial errors into strings, fall back to matching the message
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return errors2.KindTimeout
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "lookup"):
		return errors2.KindDNS
	case strings.Contains(msg, "connection refused"):
		return errors2.KindConnRefused
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "connection closed"):
		return errors2.KindConnReset
	case strings.Contains(msg, "tls"), strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"):
		return errors2.KindTLS
	}
	return errors2.KindOther
}
