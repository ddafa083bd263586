package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/francoispqt/gojay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/loadtest"
)

func sample() *Report {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Report{
		Definition: &loadtest.Definition{
			ID:              "abc",
			Name:            "checkout",
			Request:         http.Request{Method: "GET", URL: "http://target.test/ok"},
			DurationSeconds: 3,
			Rate:            1500,
			Pacing:          loadtest.PacingBatched,
		},
		State: loadtest.StateCompleted,
		Result: &loadtest.RunResult{
			Total:             4500,
			Succeeded:         4400,
			Failed:            100,
			AverageLatencyMs:  12.5,
			MinLatencyMs:      1,
			MaxLatencyMs:      90,
			P50LatencyMs:      10,
			P90LatencyMs:      20,
			P95LatencyMs:      30,
			P99LatencyMs:      80,
			StatusCodes:       loadtest.StatusCounts{200: 4400, 503: 60},
			Errors:            loadtest.ErrorCounts{errors2.KindTimeout: 40},
			StartedAt:         start,
			FinishedAt:        start.Add(3 * time.Second),
			ElapsedMs:         3000,
			RequestsPerSecond: 1500,
			Pacing:            loadtest.PacingBatched,
		},
	}
}

func TestFormatFromString(t *testing.T) {
	for in, want := range map[string]Format{"": Pretty, "table": Pretty, "TEXT": Plain, "json": JSON, "junit": JUnit} {
		got, err := FormatFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := FormatFromString("yaml")
	assert.Equal(t, ErrInvalidFormat, err)
}

func TestWrite_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Pretty, sample()))
	out := buf.String()
	assert.Contains(t, out, "checkout")
	assert.Contains(t, out, "4,500")
	assert.Contains(t, out, "1,500/s")
	assert.Contains(t, out, "status 503")
	assert.Contains(t, out, "80.00ms")
}

func TestWrite_Plain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Plain, sample()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Contains(t, lines, "requests\t4,500")
	assert.Contains(t, lines, "status 503\t60")
	assert.Contains(t, lines, "error timeout\t40")
	assert.Contains(t, lines, "success rate\t97.78%")
}

func TestWrite_PlainWithoutResult(t *testing.T) {
	r := sample()
	r.Result = nil
	r.State = loadtest.StateFailed
	r.Error = "worker exited with code 2"

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Plain, r))
	assert.Contains(t, buf.String(), "error\tworker exited with code 2")
	assert.NotContains(t, buf.String(), "requests")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, sample()))

	var got struct {
		def   loadtest.Definition
		res   loadtest.RunResult
		state string
	}
	dec := gojay.BorrowDecoder(bytes.NewReader(buf.Bytes()))
	defer dec.Release()
	require.NoError(t, dec.DecodeObject(gojay.DecodeObjectFunc(func(dec *gojay.Decoder, k string) error {
		switch k {
		case "definition":
			return dec.Object(&got.def)
		case "result":
			return dec.Object(&got.res)
		case "state":
			return dec.String(&got.state)
		}
		return nil
	})))
	assert.Equal(t, "checkout", got.def.Name)
	assert.Equal(t, "completed", got.state)
	assert.Equal(t, int64(4500), got.res.Total)
	assert.Equal(t, int64(40), got.res.Errors[errors2.KindTimeout])
}

func TestWrite_JUnit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JUnit, sample()))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	suite := doc.FindElement("//testsuite")
	require.NotNil(t, suite)
	assert.Equal(t, "checkout", suite.SelectAttrValue("name", ""))
	assert.Equal(t, "3", suite.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("failures", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("errors", ""))
	assert.Equal(t, "3.000", suite.SelectAttrValue("time", ""))

	cases := suite.SelectElements("testcase")
	require.Len(t, cases, 3)
	assert.Nil(t, cases[0].SelectElement("failure"))
	assert.NotNil(t, cases[1].SelectElement("failure"))
	assert.NotNil(t, cases[2].SelectElement("error"))
	assert.Equal(t, "timeout", cases[2].SelectElement("error").SelectAttrValue("type", ""))
}

func TestWrite_JUnitWithoutResult(t *testing.T) {
	r := sample()
	r.Result = nil
	r.State = loadtest.StateNotStarted

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JUnit, r))
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	e := doc.FindElement("//testcase/error")
	require.NotNil(t, e)
	assert.Equal(t, "no result: load test is not_started", e.SelectAttrValue("message", ""))
}

func TestWrite_Unknown(t *testing.T) {
	assert.Equal(t, ErrInvalidFormat, Write(&bytes.Buffer{}, Unknown, sample()))
}
