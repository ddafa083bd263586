package store

import (
	"context"
	"sort"
	"sync"
	"time"

	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
)

// Memory is a map backed Store. Records are copied on the way in and out so callers never share memory
// with the store
type Memory struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Store = &Memory{}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*Record)}
}

func (m *Memory) Put(ctx context.Context, def *loadtest.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[def.ID]; ok {
		return &ErrDuplicateID{ID: def.ID}
	}
	m.records[def.ID] = &Record{Definition: def.Clone(), State: loadtest.StateNotStarted}
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, &errors2.NotFoundError{ID: id}
	}
	return r.Clone(), nil
}

func (m *Memory) List(ctx context.Context, f Filter) ([]*Record, error) {
	m.mu.RLock()
	ret := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		if f.match(r) {
			ret = append(ret, r.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		a, b := ret[i].Definition, ret[j].Definition
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return ret, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return &errors2.NotFoundError{ID: id}
	}
	delete(m.records, id)
	return nil
}

// update applies f to the record under the write lock
func (m *Memory) update(id string, f func(r *Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return &errors2.NotFoundError{ID: id}
	}
	f(r)
	return nil
}

func (m *Memory) MarkRunning(ctx context.Context, id string, at time.Time) error {
	return m.update(id, func(r *Record) {
		r.State = loadtest.StateRunning
		r.StartedAt = at
		r.FinishedAt = time.Time{}
		r.LastError = ""
	})
}

func (m *Memory) AttachResult(ctx context.Context, id string, res *loadtest.RunResult) error {
	res = res.Clone()
	return m.update(id, func(r *Record) {
		r.State = res.State()
		r.Result = res
		r.FinishedAt = res.FinishedAt
		r.LastError = ""
	})
}

func (m *Memory) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	return m.update(id, func(r *Record) {
		r.State = loadtest.StateFailed
		r.LastError = reason
		r.FinishedAt = at
	})
}

func (m *Memory) Reconcile(ctx context.Context, reason string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	now := time.Now()
	for id, r := range m.records {
		if r.State != loadtest.StateRunning {
			continue
		}
		r.State = loadtest.StateFailed
		r.LastError = reason
		r.FinishedAt = now
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error {
	return nil
}
