package http

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lucasjones/reggen"
	"github.com/segmentio/ksuid"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{{"
	endTag   = "}}"

	regexPrefix = "regex:"
	// regexLimit bounds the repetition of * and + in regex placeholders
	regexLimit = 16
)

// Template is a string with optional placeholders. Static strings are returned as is without
// touching fasttemplate.
//
// Supported placeholders:
//
//	{{seq}}           1-based sequence number of the invocation within the run
//	{{uuid}}          random uuid v4
//	{{ksuid}}         random ksuid
//	{{unix}}          current unix time in seconds
//	{{timestamp}}     current time, RFC3339 in UTC
//	{{regex:[a-z]+}}  random string matching the pattern. The pattern cannot contain "}}"
type Template struct {
	raw  string
	tmpl *fasttemplate.Template

	// reggen generators are not safe for concurrent use
	genMu sync.Mutex
	gens  map[string]*reggen.Generator
}

// ErrUnknownPlaceholder is returned when a template contains a tag we cannot render
type ErrUnknownPlaceholder struct {
	Tag string
}

func (e ErrUnknownPlaceholder) Error() string {
	return fmt.Sprintf("unknown placeholder {{%s}}", e.Tag)
}

// CompileTemplate parses the placeholders in s and checks that every one of them can be rendered
func CompileTemplate(s string) (*Template, error) {
	t := &Template{raw: s}
	if !strings.Contains(s, startTag) {
		return t, nil
	}

	tmpl, err := fasttemplate.NewTemplate(s, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	t.tmpl = tmpl
	t.gens = make(map[string]*reggen.Generator)

	// walk the tags once to compile the regex generators and reject unknown tags up front
	_, err = tmpl.ExecuteFunc(io.Discard, func(w io.Writer, tag string) (int, error) {
		tag = strings.TrimSpace(tag)
		if strings.HasPrefix(tag, regexPrefix) {
			pattern := strings.TrimPrefix(tag, regexPrefix)
			g, err := reggen.NewGenerator(pattern)
			if err != nil {
				return 0, fmt.Errorf("invalid regex placeholder %q: %w", pattern, err)
			}
			t.gens[pattern] = g
			return 0, nil
		}
		if !isKnownTag(tag) {
			return 0, ErrUnknownPlaceholder{Tag: tag}
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func isKnownTag(tag string) bool {
	switch tag {
	case "seq", "uuid", "ksuid", "unix", "timestamp":
		return true
	}
	return false
}

// IsStatic reports whether the template has no placeholders
func (t *Template) IsStatic() bool {
	return t.tmpl == nil
}

func (t *Template) String() string {
	return t.raw
}

// Render produces the string for the invocation with the given sequence number
func (t *Template) Render(seq int64) (string, error) {
	if t.tmpl == nil {
		return t.raw, nil
	}
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)
	if err := t.RenderTo(b, seq); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderTo writes the rendered template to w
func (t *Template) RenderTo(w io.Writer, seq int64) error {
	if t.tmpl == nil {
		_, err := io.WriteString(w, t.raw)
		return err
	}
	_, err := t.tmpl.ExecuteFunc(w, func(w io.Writer, tag string) (int, error) {
		return t.renderTag(w, strings.TrimSpace(tag), seq)
	})
	return err
}

func (t *Template) renderTag(w io.Writer, tag string, seq int64) (int, error) {
	switch tag {
	case "seq":
		return w.Write(strconv.AppendInt(nil, seq, 10))
	case "uuid":
		return io.WriteString(w, uuid.New().String())
	case "ksuid":
		return io.WriteString(w, ksuid.New().String())
	case "unix":
		return w.Write(strconv.AppendInt(nil, time.Now().Unix(), 10))
	case "timestamp":
		return io.WriteString(w, time.Now().UTC().Format(time.RFC3339))
	}

	if strings.HasPrefix(tag, regexPrefix) {
		pattern := strings.TrimPrefix(tag, regexPrefix)
		t.genMu.Lock()
		g, ok := t.gens[pattern]
		var out string
		if ok {
			out = g.Generate(regexLimit)
		}
		t.genMu.Unlock()
		if !ok {
			return 0, ErrUnknownPlaceholder{Tag: tag}
		}
		return io.WriteString(w, out)
	}
	return 0, ErrUnknownPlaceholder{Tag: tag}
}
