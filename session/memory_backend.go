package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	fields   map[string]string
	deadline time.Time
}

// MemoryBackend is an in-process [Backend] with Redis-compatible semantics for the
// ops this package uses. Keys past their deadline are treated as absent and dropped
// lazily on access. The clock is injectable so tests can move time forward.
//
// Each Exec holds the mutex for the whole batch, which is stronger isolation than
// Redis pipelines give; callers must not rely on it.
type MemoryBackend struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*memoryEntry
	batches [][]Op
}

// NewMemoryBackend returns an empty backend. A nil clock means time.Now.
func NewMemoryBackend(now func() time.Time) *MemoryBackend {
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{
		now:     now,
		entries: make(map[string]*memoryEntry),
	}
}

// Exec implements [Backend].
func (m *MemoryBackend) Exec(ctx context.Context, ops []Op) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]Op, len(ops))
	copy(recorded, ops)
	m.batches = append(m.batches, recorded)

	now := m.now()
	results := make([]Result, len(ops))
	for i, op := range ops {
		res, err := m.apply(op, now)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (m *MemoryBackend) live(key string, now time.Time) *memoryEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !e.deadline.IsZero() && !now.Before(e.deadline) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *MemoryBackend) apply(op Op, now time.Time) (Result, error) {
	e := m.live(op.Key, now)

	switch op.Kind {
	case OpHGet:
		if e == nil {
			return Result{}, nil
		}
		v, ok := e.fields[op.Field]
		return Result{Value: v, Found: ok}, nil
	case OpHSet:
		if e == nil {
			e = &memoryEntry{fields: make(map[string]string)}
			m.entries[op.Key] = e
		}
		_, existed := e.fields[op.Field]
		e.fields[op.Field] = op.Value
		if existed {
			return Result{}, nil
		}
		return Result{N: 1, Found: true}, nil
	case OpHSetExisting:
		if e == nil {
			return Result{}, nil
		}
		e.fields[op.Field] = op.Value
		return Result{N: 1, Found: true}, nil
	case OpHDel:
		if e == nil {
			return Result{}, nil
		}
		if _, ok := e.fields[op.Field]; !ok {
			return Result{}, nil
		}
		delete(e.fields, op.Field)
		if len(e.fields) == 0 {
			delete(m.entries, op.Key)
		}
		return Result{N: 1, Found: true}, nil
	case OpDel:
		if e == nil {
			return Result{}, nil
		}
		delete(m.entries, op.Key)
		return Result{N: 1, Found: true}, nil
	case OpExpire:
		if e == nil {
			return Result{}, nil
		}
		if op.TTL <= 0 {
			delete(m.entries, op.Key)
		} else {
			e.deadline = now.Add(op.TTL)
		}
		return Result{N: 1, Found: true}, nil
	case OpExists:
		if e == nil {
			return Result{}, nil
		}
		return Result{N: 1, Found: true}, nil
	case OpTouch:
		if e == nil {
			return Result{}, nil
		}
		e.fields[op.Field] = op.Value
		e.deadline = now.Add(op.TTL)
		return Result{N: 1, Found: true}, nil
	case OpTTL:
		if e == nil {
			return Result{N: -2}, nil
		}
		if e.deadline.IsZero() {
			return Result{N: -1, Found: true}, nil
		}
		return Result{N: e.deadline.Sub(now).Milliseconds(), Found: true}, nil
	default:
		return Result{}, fmt.Errorf("session: unsupported op %s", op.Kind)
	}
}

// Batches returns a copy of every batch executed so far, in order.
func (m *MemoryBackend) Batches() [][]Op {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]Op, len(m.batches))
	for i, b := range m.batches {
		out[i] = append([]Op(nil), b...)
	}
	return out
}

// ResetBatches clears the recorded batch history.
func (m *MemoryBackend) ResetBatches() {
	m.mu.Lock()
	m.batches = nil
	m.mu.Unlock()
}

// Deadline returns the absolute expiry of key, if it is live and has one.
func (m *MemoryBackend) Deadline(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key, m.now())
	if e == nil || e.deadline.IsZero() {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Len returns the number of live keys.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for key := range m.entries {
		if m.live(key, now) != nil {
			n++
		}
	}
	return n
}
