package api

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surgehq/surge/internal/coordinator"
	"github.com/surgehq/surge/internal/metrics"
	"github.com/surgehq/surge/internal/store"
	"github.com/surgehq/surge/internal/worker"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// gateSpawner holds every run open until the gate is closed or the run is stopped
type gateSpawner struct {
	once sync.Once
	gate chan struct{}
}

func (g *gateSpawner) open() {
	g.once.Do(func() { close(g.gate) })
}

func (g *gateSpawner) Spawn(ctx context.Context, job *worker.Job, onProgress loadtest.ProgressFunc) (*loadtest.RunResult, error) {
	onProgress(loadtest.Progress{Total: 2, Succeeded: 2, Windows: 1})
	now := time.Now()
	res := &loadtest.RunResult{
		Total:       2,
		Succeeded:   2,
		LatenciesMs: loadtest.Latencies{1, 2},
		StatusCodes: loadtest.StatusCounts{200: 2},
		Errors:      loadtest.ErrorCounts{},
		StartedAt:   now,
		FinishedAt:  now,
	}
	select {
	case <-g.gate:
	case <-ctx.Done():
		res.Cancelled = true
	}
	return res, nil
}

func (g *gateSpawner) Isolation() worker.Isolation {
	return "gate"
}

type harness struct {
	coord  *coordinator.Coordinator
	gate   *gateSpawner
	client *fasthttp.Client
}

func newHarness(t *testing.T) *harness {
	gate := &gateSpawner{gate: make(chan struct{})}
	coord := coordinator.New(store.NewMemory(), gate, coordinator.WithMetrics(metrics.New()))
	srv := New(coord)

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		gate.open()
		cancel()
		<-done
		coord.Shutdown(context.Background())
	})
	return &harness{
		coord: coord,
		gate:  gate,
		client: &fasthttp.Client{
			Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
			// idle keep-alive connections hold up the server shutdown
			MaxIdleConnDuration: 50 * time.Millisecond,
		},
	}
}

func (h *harness) do(t *testing.T, method, path, body string) (int, []byte) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://surge.test" + path)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	require.NoError(t, h.client.DoTimeout(req, resp, 5*time.Second))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

const validBody = `{"name":"api","collection_id":"c1","request":{"method":"GET","url":"http://target.test/ok"},"duration_seconds":2,"rate":5}`

func (h *harness) create(t *testing.T, body string) *LoadTest {
	code, raw := h.do(t, "POST", Prefix, body)
	require.Equal(t, fasthttp.StatusCreated, code, string(raw))
	lt := &LoadTest{}
	require.NoError(t, gojay.UnmarshalJSONObject(raw, lt))
	return lt
}

func decodeError(t *testing.T, raw []byte) *Error {
	resp := &ErrorResponse{}
	require.NoError(t, gojay.UnmarshalJSONObject(raw, resp))
	require.NotNil(t, resp.Error, string(raw))
	return resp.Error
}

func TestServer_Create(t *testing.T) {
	h := newHarness(t)
	lt := h.create(t, validBody)

	assert.NotEmpty(t, lt.Definition.ID)
	assert.Equal(t, "api", lt.Definition.Name)
	assert.Equal(t, "c1", lt.Definition.CollectionID)
	assert.Equal(t, int64(5), lt.Definition.Rate)
	assert.Equal(t, loadtest.PacingBatched, lt.Definition.Pacing)
	assert.Equal(t, loadtest.StateNotStarted, lt.State)
	assert.False(t, lt.Definition.CreatedAt.IsZero())
}

func TestServer_CreateInvalid(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"zero rate", `{"name":"x","request":{"method":"GET","url":"http://t.test/"},"duration_seconds":1,"rate":0}`, []string{"rate"}},
		{"bad url", `{"name":"x","request":{"method":"GET","url":"nope"},"duration_seconds":1,"rate":1}`, []string{"request.url"}},
		{"bad pacing", `{"name":"x","request":{"method":"GET","url":"http://t.test/"},"duration_seconds":1,"rate":1,"pacing":"burst"}`, []string{"pacing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, raw := h.do(t, "POST", Prefix, tt.body)
			assert.Equal(t, fasthttp.StatusBadRequest, code)
			e := decodeError(t, raw)
			assert.Equal(t, KindValidation, e.Kind)
			var got []string
			for _, f := range e.Fields {
				got = append(got, f.Field)
			}
			assert.Subset(t, got, tt.fields)
		})
	}

	code, raw := h.do(t, "POST", Prefix, `{"name":`)
	assert.Equal(t, fasthttp.StatusBadRequest, code)
	assert.Equal(t, KindValidation, decodeError(t, raw).Kind)
}

func TestServer_GetAndList(t *testing.T) {
	h := newHarness(t)
	a := h.create(t, validBody)
	h.create(t, strings.Replace(validBody, `"c1"`, `"c2"`, 1))

	code, raw := h.do(t, "GET", Prefix+"/"+a.Definition.ID, "")
	require.Equal(t, fasthttp.StatusOK, code)
	got := &LoadTest{}
	require.NoError(t, gojay.UnmarshalJSONObject(raw, got))
	assert.Equal(t, a.Definition.ID, got.Definition.ID)

	code, raw = h.do(t, "GET", Prefix, "")
	require.Equal(t, fasthttp.StatusOK, code)
	all := &ListResponse{}
	require.NoError(t, gojay.UnmarshalJSONObject(raw, all))
	assert.Len(t, all.LoadTests, 2)

	code, raw = h.do(t, "GET", Prefix+"?collection_id=c1", "")
	require.Equal(t, fasthttp.StatusOK, code)
	filtered := &ListResponse{}
	require.NoError(t, gojay.UnmarshalJSONObject(raw, filtered))
	require.Len(t, filtered.LoadTests, 1)
	assert.Equal(t, a.Definition.ID, filtered.LoadTests[0].Definition.ID)

	code, raw = h.do(t, "GET", Prefix+"?collection_id=none", "")
	require.Equal(t, fasthttp.StatusOK, code)
	assert.JSONEq(t, `{"loadtests":[]}`, string(raw))
}

func TestServer_UnknownID(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct{ method, path string }{
		{"GET", Prefix + "/missing"},
		{"GET", Prefix + "/missing/status"},
		{"POST", Prefix + "/missing/start"},
		{"POST", Prefix + "/missing/stop"},
		{"DELETE", Prefix + "/missing"},
	} {
		code, raw := h.do(t, tc.method, tc.path, "")
		assert.Equal(t, fasthttp.StatusNotFound, code, tc.method+" "+tc.path)
		assert.Equal(t, KindNotFound, decodeError(t, raw).Kind)
	}
}

func (h *harness) status(t *testing.T, id string) *Status {
	code, raw := h.do(t, "GET", Prefix+"/"+id+"/status", "")
	require.Equal(t, fasthttp.StatusOK, code, string(raw))
	st := &Status{}
	require.NoError(t, gojay.UnmarshalJSONObject(raw, st))
	return st
}

func TestServer_Lifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, validBody).Definition.ID

	st := h.status(t, id)
	assert.Equal(t, loadtest.StateNotStarted, st.State)
	assert.Nil(t, st.Result)
	assert.Nil(t, st.Progress)

	code, raw := h.do(t, "POST", Prefix+"/"+id+"/stop", "")
	assert.Equal(t, fasthttp.StatusConflict, code)
	assert.Equal(t, KindNotRunning, decodeError(t, raw).Kind)

	code, raw = h.do(t, "POST", Prefix+"/"+id+"/start", "")
	require.Equal(t, fasthttp.StatusAccepted, code, string(raw))
	assert.JSONEq(t, `{"id":"`+id+`","state":"running"}`, string(raw))

	code, raw = h.do(t, "POST", Prefix+"/"+id+"/start", "")
	assert.Equal(t, fasthttp.StatusConflict, code)
	assert.Equal(t, KindAlreadyRunning, decodeError(t, raw).Kind)

	code, raw = h.do(t, "DELETE", Prefix+"/"+id, "")
	assert.Equal(t, fasthttp.StatusConflict, code)
	assert.Equal(t, KindAlreadyRunning, decodeError(t, raw).Kind)

	assert.Eventually(t, func() bool {
		st := h.status(t, id)
		return st.State == loadtest.StateRunning && st.Progress != nil && st.Progress.Total == 2
	}, 2*time.Second, 10*time.Millisecond)

	h.gate.open()
	require.NoError(t, h.coord.Wait(context.Background(), id))

	st = h.status(t, id)
	assert.Equal(t, loadtest.StateCompleted, st.State)
	require.NotNil(t, st.Result)
	assert.Equal(t, int64(2), st.Result.Total)
	assert.Equal(t, int64(2), st.Result.StatusCodes[200])
	assert.Nil(t, st.Progress)

	code, raw = h.do(t, "DELETE", Prefix+"/"+id, "")
	require.Equal(t, fasthttp.StatusOK, code)
	assert.JSONEq(t, `{"id":"`+id+`","deleted":true}`, string(raw))

	code, _ = h.do(t, "GET", Prefix+"/"+id, "")
	assert.Equal(t, fasthttp.StatusNotFound, code)
}

func TestServer_Stop(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, validBody).Definition.ID

	code, _ := h.do(t, "POST", Prefix+"/"+id+"/start", "")
	require.Equal(t, fasthttp.StatusAccepted, code)

	code, raw := h.do(t, "POST", Prefix+"/"+id+"/stop", "")
	require.Equal(t, fasthttp.StatusAccepted, code)
	assert.JSONEq(t, `{"id":"`+id+`","state":"stopping"}`, string(raw))

	require.NoError(t, h.coord.Wait(context.Background(), id))
	st := h.status(t, id)
	assert.Equal(t, loadtest.StateCancelled, st.State)
	require.NotNil(t, st.Result)
	assert.True(t, st.Result.Cancelled)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	code, raw := h.do(t, "GET", "/healthz", "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","running":0}`, string(raw))

	id := h.create(t, validBody).Definition.ID
	code, _ = h.do(t, "POST", Prefix+"/"+id+"/start", "")
	require.Equal(t, fasthttp.StatusAccepted, code)
	h.gate.open()
	require.NoError(t, h.coord.Wait(context.Background(), id))

	code, raw = h.do(t, "GET", "/metrics", "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.Contains(t, string(raw), "surge_runs_started_total 1")

	code, raw = h.do(t, "GET", "/nope", "")
	assert.Equal(t, fasthttp.StatusNotFound, code)
	assert.Equal(t, KindNotFound, decodeError(t, raw).Kind)
}

func TestToError(t *testing.T) {
	code, e := toError(&store.ErrDuplicateID{ID: "x"})
	assert.Equal(t, fasthttp.StatusConflict, code)
	assert.Equal(t, KindConflict, e.Kind)

	code, e = toError(assert.AnError)
	assert.Equal(t, fasthttp.StatusInternalServerError, code)
	assert.Equal(t, KindInternal, e.Kind)
}
