// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/metrics"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	subscriberBuffer = 256
	dropLogEvery     = 100
)

var dropCount atomic.Uint64

// MemoryStore is the in-process Store. Upload state lives for the session only.
type MemoryStore struct {
	mu sync.RWMutex

	records map[string]*model.Record
	order   []string
	seq     uint64
	subs    []*memSub

	now   func() time.Time
	newID func() string
}

// Option customises a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryStore) { m.now = now }
}

// WithIDGenerator overrides uuid generation. Generated ids must be unique.
func WithIDGenerator(gen func() string) Option {
	return func(m *MemoryStore) { m.newID = gen }
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		records: make(map[string]*model.Record),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Create(ctx context.Context, in model.CreateInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	if _, exists := m.records[id]; exists {
		return "", errors.New("duplicate upload id")
	}

	ts := m.now()
	rec := &model.Record{
		ID:                id,
		DisplayName:       norm.NFC.String(in.DisplayName),
		MediaType:         in.MediaType,
		Status:            model.StatusQueued,
		OriginalSizeBytes: in.OriginalSizeBytes,
		Attempt:           1,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	m.records[id] = rec
	m.order = append(m.order, id)
	m.notifyLocked(EventCreated, rec)
	return id, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cpy := rec.Clone()
	return &cpy, nil
}

func (m *MemoryStore) Patch(ctx context.Context, id string, p model.Patch) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}

	next, err := rec.Apply(p, m.now())
	if err != nil {
		metrics.IncStorePatchRejected()
		return nil, err
	}
	m.records[id] = &next
	m.notifyLocked(EventPatched, &next)

	cpy := next.Clone()
	return &cpy, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]model.Record, 0, len(m.order))
	for _, id := range m.order {
		list = append(list, m.records[id].Clone())
	}
	return list, nil
}

// Subscribe registers a buffered observer. Delivery never blocks a writer: when the
// buffer is full the event is dropped and counted, and the subscriber is expected to
// re-read the store.
func (m *MemoryStore) Subscribe(name string) Subscription {
	s := &memSub{store: m, name: name, ch: make(chan Event, subscriberBuffer)}
	m.mu.Lock()
	m.subs = append(m.subs, s)
	m.mu.Unlock()
	return s
}

// notifyLocked runs under the write lock so each subscriber sees mutations in order.
func (m *MemoryStore) notifyLocked(kind EventKind, rec *model.Record) {
	m.seq++
	if len(m.subs) == 0 {
		return
	}
	ev := Event{Seq: m.seq, Kind: kind, Record: rec.Clone()}
	for _, s := range m.subs {
		select {
		case s.ch <- ev:
		default:
			metrics.IncStoreNotifyDrop(s.name)
			if count := dropCount.Add(1); count%dropLogEvery == 0 {
				logger := log.WithComponent("store")
				logger.Warn().
					Str("subscriber", s.name).
					Uint64("dropped", count).
					Msg("record change events dropped, subscriber too slow")
			}
		}
	}
}

type memSub struct {
	store  *MemoryStore
	name   string
	ch     chan Event
	closed bool
}

func (s *memSub) C() <-chan Event {
	return s.ch
}

func (s *memSub) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	out := s.store.subs[:0]
	for _, c := range s.store.subs {
		if c != s {
			out = append(out, c)
		}
	}
	s.store.subs = out
	close(s.ch)
	return nil
}

// Ensure compliance
var _ Store = (*MemoryStore)(nil)
