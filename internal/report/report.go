package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/dustin/go-humanize"
	"github.com/francoispqt/gojay"
	"github.com/olekukonko/tablewriter"
	"github.com/surgehq/surge/pkg/loadtest"
)

type Format int

const (
	Unknown Format = iota
	Pretty
	Plain
	JSON
	JUnit
)

var ErrInvalidFormat = fmt.Errorf("unknown format")

func FormatFromString(in string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "", "pretty", "table":
		return Pretty, nil
	case "plain", "text":
		return Plain, nil
	case "json":
		return JSON, nil
	case "junit", "xml":
		return JUnit, nil
	}
	return Unknown, ErrInvalidFormat
}

// Report is what gets rendered: the definition and its latest result
type Report struct {
	Definition *loadtest.Definition
	State      loadtest.RunState
	Result     *loadtest.RunResult
	Error      string
}

// Write renders r to w in format f
func Write(w io.Writer, f Format, r *Report) error {
	switch f {
	case Plain:
		return writePlain(w, r)
	case JSON:
		return writeJSON(w, r)
	case JUnit:
		return writeJUnit(w, r)
	case Pretty:
		return writeTable(w, r)
	}
	return ErrInvalidFormat
}

func TabString(fields ...string) string {
	return strings.Join(fields, "\t")
}

func ms(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "ms"
}

// rows is the summary shared by the table and plain renderings
func rows(r *Report) [][]string {
	d := r.Definition
	out := [][]string{
		{"id", d.ID},
		{"name", d.Name},
		{"target", d.Request.Method + " " + d.Request.URL},
		{"rate", humanize.Comma(d.Rate) + "/s"},
		{"duration", (time.Duration(d.DurationSeconds) * time.Second).String()},
		{"pacing", string(d.Pacing)},
		{"state", string(r.State)},
	}
	if r.Error != "" {
		out = append(out, []string{"error", r.Error})
	}
	res := r.Result
	if res == nil {
		return out
	}
	out = append(out,
		[]string{"requests", humanize.Comma(res.Total)},
		[]string{"succeeded", humanize.Comma(res.Succeeded)},
		[]string{"failed", humanize.Comma(res.Failed)},
		[]string{"success rate", strconv.FormatFloat(res.SuccessRate(), 'f', 2, 64) + "%"},
		[]string{"throughput", humanize.FormatFloat("#,###.##", res.RequestsPerSecond) + " req/s"},
		[]string{"elapsed", (time.Duration(res.ElapsedMs * float64(time.Millisecond))).Round(time.Millisecond).String()},
	)
	if res.Total > 0 {
		out = append(out,
			[]string{"latency avg", ms(res.AverageLatencyMs)},
			[]string{"latency min", ms(res.MinLatencyMs)},
			[]string{"latency p50", ms(res.P50LatencyMs)},
			[]string{"latency p90", ms(res.P90LatencyMs)},
			[]string{"latency p95", ms(res.P95LatencyMs)},
			[]string{"latency p99", ms(res.P99LatencyMs)},
			[]string{"latency max", ms(res.MaxLatencyMs)},
		)
	}
	for _, c := range res.StatusCodes.SortedCodes() {
		out = append(out, []string{"status " + strconv.Itoa(c), humanize.Comma(res.StatusCodes[c])})
	}
	for _, k := range res.Errors.SortedKinds() {
		out = append(out, []string{"error " + string(k), humanize.Comma(res.Errors[k])})
	}
	if res.Cancelled {
		out = append(out, []string{"cancelled", "true"})
	}
	return out
}

func writeTable(w io.Writer, r *Report) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"metric", "value"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows(r))
	table.Render()
	return nil
}

func writePlain(w io.Writer, r *Report) error {
	for _, row := range rows(r) {
		if _, err := fmt.Fprintln(w, TabString(row...)); err != nil {
			return err
		}
	}
	return nil
}

// document is the json rendering, a definition with its result nested
type document struct {
	*Report
}

func (d document) MarshalJSONObject(enc *gojay.Encoder) {
	enc.ObjectKey("definition", d.Definition)
	enc.StringKey("state", string(d.State))
	enc.StringKeyOmitEmpty("error", d.Error)
	enc.ObjectKeyNullEmpty("result", d.Result)
}

func (d document) IsNil() bool {
	return d.Report == nil
}

func writeJSON(w io.Writer, r *Report) error {
	enc := gojay.BorrowEncoder(w)
	defer enc.Release()
	if err := enc.EncodeObject(document{r}); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func seconds(msec float64) string {
	return strconv.FormatFloat(msec/1000, 'f', 3, 64)
}

// writeJUnit renders the run as a single test suite so CI systems can gate on it. Each observed status code
// and error kind is a test case; failing status codes and every error kind carry a failure element
func writeJUnit(w io.Writer, r *Report) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.Indent(2)

	d := r.Definition
	suites := doc.CreateElement("testsuites")
	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", d.Name)
	suite.CreateAttr("id", d.ID)

	props := suite.CreateElement("properties")
	for _, kv := range [][2]string{
		{"method", d.Request.Method},
		{"url", d.Request.URL},
		{"rate", strconv.FormatInt(d.Rate, 10)},
		{"duration_seconds", strconv.FormatInt(d.DurationSeconds, 10)},
		{"pacing", string(d.Pacing)},
		{"state", string(r.State)},
	} {
		p := props.CreateElement("property")
		p.CreateAttr("name", kv[0])
		p.CreateAttr("value", kv[1])
	}

	var tests, failures, errs int
	res := r.Result
	if res == nil {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", "run")
		tc.CreateAttr("classname", d.Name)
		e := tc.CreateElement("error")
		msg := r.Error
		if msg == "" {
			msg = "no result: load test is " + string(r.State)
		}
		e.CreateAttr("message", msg)
		tests, errs = 1, 1
	} else {
		suite.CreateAttr("time", seconds(res.ElapsedMs))
		if !res.StartedAt.IsZero() {
			suite.CreateAttr("timestamp", res.StartedAt.UTC().Format(time.RFC3339))
		}
		for _, c := range res.StatusCodes.SortedCodes() {
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", "status "+strconv.Itoa(c))
			tc.CreateAttr("classname", d.Name)
			tc.CreateAttr("assertions", strconv.FormatInt(res.StatusCodes[c], 10))
			tests++
			if c >= 400 {
				f := tc.CreateElement("failure")
				f.CreateAttr("type", "status")
				f.CreateAttr("message", fmt.Sprintf("%d responses with status %d", res.StatusCodes[c], c))
				failures++
			}
		}
		for _, k := range res.Errors.SortedKinds() {
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", "error "+string(k))
			tc.CreateAttr("classname", d.Name)
			tc.CreateAttr("assertions", strconv.FormatInt(res.Errors[k], 10))
			f := tc.CreateElement("error")
			f.CreateAttr("type", string(k))
			f.CreateAttr("message", fmt.Sprintf("%d invocations failed with %s", res.Errors[k], k))
			tests++
			errs++
		}
		out := suite.CreateElement("system-out")
		out.SetText(fmt.Sprintf("requests=%d succeeded=%d failed=%d rps=%.2f avg=%.2fms p50=%.2fms p90=%.2fms p95=%.2fms p99=%.2fms max=%.2fms cancelled=%t",
			res.Total, res.Succeeded, res.Failed, res.RequestsPerSecond, res.AverageLatencyMs,
			res.P50LatencyMs, res.P90LatencyMs, res.P95LatencyMs, res.P99LatencyMs, res.MaxLatencyMs, res.Cancelled))
	}

	for _, e := range []*etree.Element{suites, suite} {
		e.CreateAttr("tests", strconv.Itoa(tests))
		e.CreateAttr("failures", strconv.Itoa(failures))
		e.CreateAttr("errors", strconv.Itoa(errs))
	}

	_, err := doc.WriteTo(w)
	return err
}
