package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/surgehq/surge/internal/metrics"
	"github.com/surgehq/surge/internal/store"
	"github.com/surgehq/surge/internal/worker"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/surgehq/surge/pkg/log"
)

// RestartReason is recorded on runs that were still marked running when the service started
const RestartReason = "interrupted by service restart"

// handle tracks one live run. Only the coordinator creates and removes handles
type handle struct {
	id        string
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	mu       sync.Mutex
	progress *loadtest.Progress
}

func (h *handle) setProgress(p loadtest.Progress) {
	h.mu.Lock()
	h.progress = &p
	h.mu.Unlock()
}

func (h *handle) getProgress() *loadtest.Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.progress == nil {
		return &loadtest.Progress{}
	}
	p := *h.progress
	return &p
}

// Status is the answer to a status query
type Status struct {
	ID    string
	State loadtest.RunState
	// Result of the latest finished run, nil if there is none
	Result *loadtest.RunResult
	// Progress is only set while the run is live
	Progress *loadtest.Progress
	// Error is the reason of the last failure
	Error string
}

// Coordinator owns the lifecycle of runs: it persists definitions, spawns a worker per run and writes the
// results back. At most one run per definition is live at any time
type Coordinator struct {
	config  *Config
	store   store.Store
	spawner worker.Spawner
	metrics *metrics.Metrics

	mu      sync.Mutex
	handles map[string]*handle
	wg      sync.WaitGroup
}

// New creates a coordinator on top of s, spawning runs with sp
func New(s store.Store, sp worker.Spawner, opts ...ConfigOption) *Coordinator {
	c := &Coordinator{
		config:  NewDefaultConfig(),
		store:   s,
		spawner: sp,
		handles: make(map[string]*handle),
	}
	for _, o := range opts {
		o(c.config)
	}
	c.metrics = c.config.Metrics
	return c
}

// Metrics returns the collectors the coordinator reports to, nil when none were configured
func (c *Coordinator) Metrics() *metrics.Metrics {
	return c.metrics
}

// Create validates def, assigns its id and creation time and stores it
func (c *Coordinator) Create(ctx context.Context, def *loadtest.Definition) (*loadtest.Definition, error) {
	def = def.Clone()
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def.ID = ksuid.New().String()
	def.CreatedAt = time.Now().UTC()
	if err := c.store.Put(ctx, def); err != nil {
		return nil, err
	}
	log.Info().Str("id", def.ID).Str("name", def.Name).Msg("load test created")
	return def, nil
}

func (c *Coordinator) Get(ctx context.Context, id string) (*store.Record, error) {
	return c.store.Get(ctx, id)
}

func (c *Coordinator) List(ctx context.Context, f store.Filter) ([]*store.Record, error) {
	return c.store.List(ctx, f)
}

// Start launches a run of the definition and returns as soon as the worker was scheduled
func (c *Coordinator) Start(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, ok := c.handles[id]; ok {
		c.mu.Unlock()
		return &errors2.AlreadyRunningError{ID: id}
	}
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{id: id, cancel: cancel, done: make(chan struct{}), startedAt: time.Now().UTC()}
	if err := c.store.MarkRunning(ctx, id, h.startedAt); err != nil {
		c.mu.Unlock()
		cancel()
		return err
	}
	c.handles[id] = h
	c.wg.Add(1)
	c.mu.Unlock()

	c.metrics.RunStarted()
	log.Info().Str("id", id).Str("isolation", string(c.spawner.Isolation())).Msg("load test started")
	go c.run(runCtx, h, rec.Definition)
	return nil
}

func (c *Coordinator) run(ctx context.Context, h *handle, def *loadtest.Definition) {
	defer c.wg.Done()
	defer h.cancel()

	job := &worker.Job{
		Definition:       def,
		HTTP:             c.config.HTTP,
		ProgressInterval: c.config.ProgressInterval,
	}
	res, err := c.spawner.Spawn(ctx, job, h.setProgress)

	// the run context may be cancelled by now, persisting must not be
	pctx := context.Background()
	state := loadtest.StateFailed
	if err != nil {
		log.Error().Err(err).Str("id", h.id).Msg("load test failed")
		if serr := c.store.MarkFailed(pctx, h.id, err.Error(), time.Now().UTC()); serr != nil {
			log.Error().Err(serr).Str("id", h.id).Msg("failed to persist failure")
		}
	} else {
		state = res.State()
		if serr := c.store.AttachResult(pctx, h.id, res); serr != nil {
			log.Error().Err(serr).Str("id", h.id).Msg("failed to persist result")
			state = loadtest.StateFailed
			if ferr := c.store.MarkFailed(pctx, h.id, serr.Error(), time.Now().UTC()); ferr != nil {
				log.Error().Err(ferr).Str("id", h.id).Msg("failed to persist failure")
			}
		}
		log.Info().Str("id", h.id).
			Str("state", string(state)).
			Int64("total", res.Total).
			Int64("succeeded", res.Succeeded).
			Int64("failed", res.Failed).
			Msg("load test finished")
	}
	c.metrics.RunFinished(state, res)

	c.mu.Lock()
	delete(c.handles, h.id)
	close(h.done)
	c.mu.Unlock()
}

// Stop cancels a live run. The worker finishes its current window and reports a partial result
func (c *Coordinator) Stop(ctx context.Context, id string) error {
	c.mu.Lock()
	h, ok := c.handles[id]
	c.mu.Unlock()
	if !ok {
		if _, err := c.store.Get(ctx, id); err != nil {
			return err
		}
		return &errors2.NotRunningError{ID: id}
	}
	log.Info().Str("id", id).Msg("stopping load test")
	h.cancel()
	return nil
}

// Status reports the persisted state and result of id, plus live progress while it runs
func (c *Coordinator) Status(ctx context.Context, id string) (*Status, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s := &Status{ID: id, State: rec.State, Result: rec.Result, Error: rec.LastError}

	c.mu.Lock()
	h, ok := c.handles[id]
	c.mu.Unlock()
	if ok && s.State == loadtest.StateRunning {
		s.Progress = h.getProgress()
	}
	return s, nil
}

// Delete removes the definition and its result. A live run must be stopped first
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handles[id]; ok {
		return &errors2.AlreadyRunningError{ID: id}
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("id", id).Msg("load test deleted")
	return nil
}

// Running returns the ids of the live runs, sorted
func (c *Coordinator) Running() []string {
	c.mu.Lock()
	ret := make([]string, 0, len(c.handles))
	for id := range c.handles {
		ret = append(ret, id)
	}
	c.mu.Unlock()
	sort.Strings(ret)
	return ret
}

// Wait blocks until the run of id is no longer live or ctx is done
func (c *Coordinator) Wait(ctx context.Context, id string) error {
	c.mu.Lock()
	h, ok := c.handles[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recover fails every run left marked running by a previous process. Call it once before serving
func (c *Coordinator) Recover(ctx context.Context) ([]string, error) {
	ids, err := c.store.Reconcile(ctx, RestartReason)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		log.Warn().Str("id", id).Msg(RestartReason)
	}
	return ids, nil
}

// Shutdown stops every live run and waits for their results to be persisted, or for ctx to be done
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	for _, h := range c.handles {
		h.cancel()
	}
	n := len(c.handles)
	c.mu.Unlock()
	if n > 0 {
		log.Info().Int("runs", n).Msg("stopping live load tests")
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HTTPConfig is the client configuration handed to workers
func (c *Coordinator) HTTPConfig() http.Config {
	return c.config.HTTP
}
