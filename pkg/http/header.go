package http

import (
	"io"
	"strings"

	"github.com/francoispqt/gojay"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"
)

// Header encapsulates a header key value entry
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered header set. It is encoded as a JSON object, so keys are expected to be unique.
// Use Set rather than append to keep that true
type Headers []Header

func (rr Headers) MarshalZerologArray(a *zerolog.Array) {
	for _, u := range rr {
		a.Object(u)
	}
}

func (h Header) MarshalZerologObject(e *zerolog.Event) {
	e.Str("k", h.Key).
		Str("v", h.Value)
}

// Set replaces the value of an existing header (case insensitive match) or appends a new one
func (rr *Headers) Set(key, value string) {
	for i := range *rr {
		if strings.EqualFold((*rr)[i].Key, key) {
			(*rr)[i].Value = value
			return
		}
	}
	*rr = append(*rr, Header{Key: key, Value: value})
}

// Get returns the value of the first header matching key case insensitively
func (rr Headers) Get(key string) (string, bool) {
	for _, h := range rr {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// ParseHeader splits a "key: value" pair as accepted on the command line
func ParseHeader(in string) (Header, bool) {
	parts := strings.SplitN(in, ":", 2)
	if len(parts) != 2 {
		return Header{}, false
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return Header{}, false
	}
	return Header{Key: key, Value: strings.TrimSpace(parts[1])}, true
}

func (h *Header) AppendBytes(b []byte) []byte {
	b = append(b, h.Key...)
	b = append(b, ": "...)
	b = append(b, h.Value...)
	return b
}

func (h *Header) Write(buf io.Writer) (int, error) {
	w := bytebufferpool.Get()
	defer bytebufferpool.Put(w)
	w.B = h.AppendBytes(w.B)
	return buf.Write(w.B)
}

func (h *Header) String() string {
	w := bytebufferpool.Get()
	ret := string(h.AppendBytes(w.B))
	bytebufferpool.Put(w)
	return ret
}

// MarshalJSONObject encodes the headers as {"key": "value"}
func (rr Headers) MarshalJSONObject(enc *gojay.Encoder) {
	for _, h := range rr {
		enc.StringKey(h.Key, h.Value)
	}
}

func (rr Headers) IsNil() bool {
	return rr == nil
}

func (rr *Headers) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	var v string
	if err := dec.String(&v); err != nil {
		return err
	}
	rr.Set(k, v)
	return nil
}

func (rr *Headers) NKeys() int {
	return 0
}
