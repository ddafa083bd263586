package http

import (
	"fmt"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

type compiledHeader struct {
	key   string
	value *Template
}

// CompiledRequest is a Request with its templates parsed. It is immutable and safe to share
// across the goroutines of a run
type CompiledRequest struct {
	Method  string
	url     *Template
	body    *Template
	headers []compiledHeader
}

// Compile parses every template in the request. The request should be validated first
func Compile(r *Request) (*CompiledRequest, error) {
	var err error
	c := &CompiledRequest{Method: r.Method}
	if c.url, err = CompileTemplate(r.URL); err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	if c.body, err = CompileTemplate(r.Body); err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	for _, h := range r.Headers {
		v, err := CompileTemplate(h.Value)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", h.Key, err)
		}
		c.headers = append(c.headers, compiledHeader{key: h.Key, value: v})
	}
	return c, nil
}

// URL returns the unrendered url of the request
func (c *CompiledRequest) URL() string {
	return c.url.String()
}

// WriteRequest renders the request for invocation seq into dst
func (c *CompiledRequest) WriteRequest(dst *fasthttp.Request, seq int64) error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	if err := c.url.RenderTo(b, seq); err != nil {
		return err
	}
	dst.SetRequestURIBytes(b.B)
	dst.Header.SetMethod(c.Method)

	for _, h := range c.headers {
		b.Reset()
		if err := h.value.RenderTo(b, seq); err != nil {
			return err
		}
		dst.Header.SetBytesV(h.key, b.B)
	}

	if c.body.String() != "" {
		b.Reset()
		if err := c.body.RenderTo(b, seq); err != nil {
			return err
		}
		dst.SetBody(b.B)
	}
	return nil
}
