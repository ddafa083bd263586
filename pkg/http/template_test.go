package http

import (
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/valyala/fasthttp"
)

func TestCompileTemplate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		static  bool
		wantErr bool
	}{
		{"static", "http://example.test/ok", true, false},
		{"empty", "", true, false},
		{"seq", "http://example.test/{{seq}}", false, false},
		{"spaces in tag", "http://example.test/{{ seq }}", false, false},
		{"all known", "{{uuid}}{{ksuid}}{{unix}}{{timestamp}}", false, false},
		{"regex", "/users/{{regex:[a-z]+}}", false, false},
		{"unknown tag", "/{{nope}}", false, true},
		{"bad regex", "/{{regex:[a-z}}", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompileTemplate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.static, got.IsStatic())
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestTemplate_Render(t *testing.T) {
	tmpl, err := CompileTemplate("/a/{{seq}}/{{uuid}}/{{ksuid}}/{{regex:[0-9]+}}")
	require.NoError(t, err)

	out, err := tmpl.Render(9)
	require.NoError(t, err)

	parts := strings.Split(out, "/")
	require.Len(t, parts, 6)
	assert.Equal(t, "9", parts[2])
	_, err = uuid.Parse(parts[3])
	assert.NoError(t, err)
	_, err = ksuid.Parse(parts[4])
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]+$`), parts[5])
}

func TestTemplate_RenderConcurrent(t *testing.T) {
	tmpl, err := CompileTemplate("{{regex:[a-f]+}}-{{seq}}")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			out, err := tmpl.Render(seq)
			assert.NoError(t, err)
			assert.Regexp(t, `^[a-f]+-[0-9]+$`, out)
		}(int64(i))
	}
	wg.Wait()
}

func TestCompiledRequest_WriteRequest(t *testing.T) {
	c, err := Compile(&Request{
		Method:  "PUT",
		URL:     "http://example.test/items/{{seq}}?q=1",
		Headers: Headers{{Key: "Authorization", Value: "Bearer abc"}, {Key: "X-Req", Value: "{{seq}}"}},
		Body:    "payload-{{seq}}",
	})
	require.NoError(t, err)

	dst := &fasthttp.Request{}
	require.NoError(t, c.WriteRequest(dst, 3))
	assert.Equal(t, "http://example.test/items/3?q=1", dst.URI().String())
	assert.Equal(t, "PUT", string(dst.Header.Method()))
	assert.Equal(t, "Bearer abc", string(dst.Header.Peek("Authorization")))
	assert.Equal(t, "3", string(dst.Header.Peek("X-Req")))
	assert.Equal(t, "payload-3", string(dst.Body()))
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		fields []string
	}{
		{"valid", Request{Method: "GET", URL: "http://example.test/ok"}, nil},
		{"valid template", Request{Method: "POST", URL: "https://example.test/{{seq}}"}, nil},
		{"missing all", Request{}, []string{"request.method", "request.url"}},
		{"bad method", Request{Method: "FETCH", URL: "http://example.test"}, []string{"request.method"}},
		{"relative url", Request{Method: "GET", URL: "/ok"}, []string{"request.url"}},
		{"ftp url", Request{Method: "GET", URL: "ftp://example.test/file"}, []string{"request.url"}},
		{"unknown placeholder", Request{Method: "GET", URL: "http://example.test/{{nope}}"}, []string{"request.url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := &errors2.ValidationError{}
			tt.req.Normalize()
			tt.req.Validate(verr, "request.")
			var got []string
			for _, f := range verr.Fields() {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestHeaders_Set(t *testing.T) {
	var h Headers
	h.Set("Content-Type", "text/plain")
	h.Set("content-type", "application/json")
	h.Set("X-A", "1")

	assert.Len(t, h, 2)
	v, ok := h.Get("CONTENT-TYPE")
	assert.True(t, ok)
	assert.Equal(t, "application/json", v)

	parsed, ok := ParseHeader(" X-Token : abc:def ")
	assert.True(t, ok)
	assert.Equal(t, Header{Key: "X-Token", Value: "abc:def"}, parsed)
	_, ok = ParseHeader("novalue")
	assert.False(t, ok)
}

func TestRequest_ValidateHeadersAndBody(t *testing.T) {
	verr := &errors2.ValidationError{}
	r := Request{
		Method:  "POST",
		URL:     "http://example.test/",
		Headers: Headers{{Key: "X-A", Value: "{{bogus}}"}},
		Body:    "{{nope}}",
	}
	r.Validate(verr, "")
	var got []string
	for _, f := range verr.Fields() {
		got = append(got, f.Field)
	}
	assert.ElementsMatch(t, []string{"headers", "body"}, got)
}
