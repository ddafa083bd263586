package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/francoispqt/gojay"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/valyala/fasthttp"
)

// SupportedMethods are the HTTP verbs a definition may use
var SupportedMethods = []string{
	fasthttp.MethodGet,
	fasthttp.MethodPost,
	fasthttp.MethodPut,
	fasthttp.MethodPatch,
	fasthttp.MethodDelete,
	fasthttp.MethodHead,
	fasthttp.MethodOptions,
}

// IsSupportedMethod reports whether m (case sensitive, upper case) is one of SupportedMethods
func IsSupportedMethod(m string) bool {
	for _, v := range SupportedMethods {
		if v == m {
			return true
		}
	}
	return false
}

// Request describes the target request of a load test. URL, header values and Body may contain
// template placeholders that are rendered for each invocation, see Compile
type Request struct {
	Method  string
	URL     string
	Headers Headers
	Body    string
}

func (r *Request) String() string {
	return fmt.Sprintf("{ request %s %s }", r.Method, r.URL)
}

// Normalize upper cases the method and trims the url. It is applied before validation
func (r *Request) Normalize() {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	r.URL = strings.TrimSpace(r.URL)
}

// Validate appends every problem with the request to verr, prefixing the field names with prefix
func (r *Request) Validate(verr *errors2.ValidationError, prefix string) {
	if r.Method == "" {
		verr.Add(prefix+"method", "is required")
	} else if !IsSupportedMethod(r.Method) {
		verr.Addf(prefix+"method", "unsupported method %q. must be one of %s", r.Method, strings.Join(SupportedMethods, ", "))
	}

	if _, err := CompileTemplate(r.Body); err != nil {
		verr.Add(prefix+"body", err.Error())
	}
	for _, h := range r.Headers {
		if strings.TrimSpace(h.Key) == "" {
			verr.Add(prefix+"headers", "header name is required")
			continue
		}
		if _, err := CompileTemplate(h.Value); err != nil {
			verr.Addf(prefix+"headers", "%s: %s", h.Key, err.Error())
		}
	}

	if r.URL == "" {
		verr.Add(prefix+"url", "is required")
		return
	}
	u, err := CompileTemplate(r.URL)
	if err != nil {
		verr.Add(prefix+"url", err.Error())
		return
	}
	// placeholders are rendered with a sample value so the url can be checked syntactically
	sample, err := u.Render(1)
	if err != nil {
		verr.Add(prefix+"url", err.Error())
		return
	}
	if err := ValidateURL(sample); err != nil {
		verr.Add(prefix+"url", err.Error())
	}
}

// ValidateURL checks that in is an absolute http or https url with a host
func ValidateURL(in string) error {
	u, err := url.Parse(in)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url scheme %q. must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", in)
	}
	return nil
}

func (r *Request) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("method", r.Method)
	enc.StringKey("url", r.URL)
	enc.ObjectKey("headers", r.Headers)
	enc.StringKeyOmitEmpty("body", r.Body)
}

func (r *Request) IsNil() bool {
	return r == nil
}

func (r *Request) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "method":
		return dec.String(&r.Method)
	case "url":
		return dec.String(&r.URL)
	case "headers":
		return dec.Object(&r.Headers)
	case "body":
		return dec.String(&r.Body)
	}
	return nil
}

func (r *Request) NKeys() int {
	return 0
}
