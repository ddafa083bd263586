package client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/surgehq/surge/internal/api"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/valyala/fasthttp"
)

const (
	DefaultURL     = "http://127.0.0.1:8080"
	DefaultTimeout = 30 * time.Second
)

// Client talks to a running surge service
type Client struct {
	base    string
	timeout time.Duration
	http    *fasthttp.Client
}

type Option func(c *Client)

// Timeout bounds each api call
func Timeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Dial overrides how connections are made, e.g. for in memory listeners
func Dial(f fasthttp.DialFunc) Option {
	return func(c *Client) {
		c.http.Dial = f
	}
}

// New creates a client for the service at base, e.g. http://127.0.0.1:8080
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", base)
	}
	c := &Client{
		base:    strings.TrimRight(base, "/"),
		timeout: DefaultTimeout,
		http: &fasthttp.Client{
			Name: "surge-cli",
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, in gojay.MarshalerJSONObject, out gojay.UnmarshalerJSONObject, want int) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.base + path)
	if in != nil {
		body, err := gojay.MarshalJSONObject(in)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		var nerr net.Error
		if errors2.As(err, &nerr) || err == fasthttp.ErrTimeout {
			return fmt.Errorf("could not reach %s: %w", c.base, err)
		}
		return err
	}

	if resp.StatusCode() != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := gojay.UnmarshalJSONObject(resp.Body(), out); err != nil {
		return fmt.Errorf("invalid response body: %w", err)
	}
	return nil
}

// decodeError turns an error envelope back into the error values of pkg/errors so callers can match on them
func decodeError(resp *fasthttp.Response) error {
	env := &api.ErrorResponse{}
	if err := gojay.UnmarshalJSONObject(resp.Body(), env); err != nil || env.Error == nil {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	e := env.Error
	switch e.Kind {
	case api.KindValidation:
		verr := &errors2.ValidationError{}
		for _, f := range e.Fields {
			verr.Add(f.Field, f.Reason)
		}
		if len(e.Fields) == 0 {
			verr.Add("body", e.Message)
		}
		return verr
	case api.KindNotFound:
		return &errors2.NotFoundError{ID: idFromMessage(e.Message)}
	case api.KindAlreadyRunning:
		return &errors2.AlreadyRunningError{ID: idFromMessage(e.Message)}
	case api.KindNotRunning:
		return &errors2.NotRunningError{ID: idFromMessage(e.Message)}
	}
	return e
}

// idFromMessage extracts the quoted id from messages such as `load test "abc" not found`
func idFromMessage(msg string) string {
	start := strings.IndexByte(msg, '"')
	if start < 0 {
		return msg
	}
	end := strings.IndexByte(msg[start+1:], '"')
	if end < 0 {
		return msg
	}
	return msg[start+1 : start+1+end]
}

func (c *Client) Create(ctx context.Context, def *loadtest.Definition) (*api.LoadTest, error) {
	out := &api.LoadTest{}
	if err := c.do(ctx, "POST", api.Prefix, def, out, fasthttp.StatusCreated); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every load test, or only those of collectionID when it is set
func (c *Client) List(ctx context.Context, collectionID string) (api.LoadTests, error) {
	path := api.Prefix
	if collectionID != "" {
		path += "?collection_id=" + url.QueryEscape(collectionID)
	}
	out := &api.ListResponse{}
	if err := c.do(ctx, "GET", path, nil, out, fasthttp.StatusOK); err != nil {
		return nil, err
	}
	return out.LoadTests, nil
}

func (c *Client) Get(ctx context.Context, id string) (*api.LoadTest, error) {
	out := &api.LoadTest{}
	if err := c.do(ctx, "GET", api.Prefix+"/"+url.PathEscape(id), nil, out, fasthttp.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Start(ctx context.Context, id string) error {
	return c.do(ctx, "POST", api.Prefix+"/"+url.PathEscape(id)+"/start", nil, &api.Ack{}, fasthttp.StatusAccepted)
}

func (c *Client) Stop(ctx context.Context, id string) error {
	return c.do(ctx, "POST", api.Prefix+"/"+url.PathEscape(id)+"/stop", nil, &api.Ack{}, fasthttp.StatusAccepted)
}

func (c *Client) Status(ctx context.Context, id string) (*api.Status, error) {
	out := &api.Status{}
	if err := c.do(ctx, "GET", api.Prefix+"/"+url.PathEscape(id)+"/status", nil, out, fasthttp.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", api.Prefix+"/"+url.PathEscape(id), nil, &api.Ack{}, fasthttp.StatusOK)
}

// WaitFunc is called with every status observed while waiting
type WaitFunc func(st *api.Status)

// Wait polls the status of id every interval until the run is no longer running
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration, fn WaitFunc) (*api.Status, error) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		st, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if fn != nil {
			fn(st)
		}
		if st.State != loadtest.StateRunning {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-t.C:
		}
	}
}
