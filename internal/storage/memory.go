package storage

import (
	"context"
	"sync"
	"time"

	"reportal/internal/core"
)

// MemoryStore keeps records in process memory. It backs tests and the
// default development backend; the SQLite store is the durable one.
type MemoryStore struct {
	mu     sync.Mutex
	policy DuplicatePolicy
	items  map[core.Kind][]core.Record
	nextID map[core.Kind]int64
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(policy DuplicatePolicy) *MemoryStore {
	if !policy.Valid() {
		policy = RejectDuplicates
	}
	return &MemoryStore{
		policy: policy,
		items:  make(map[core.Kind][]core.Record),
		nextID: make(map[core.Kind]int64),
		now:    time.Now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, rec core.Record) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if core.SchemaFor(rec.Kind).UniquePerPeriod {
		for i, existing := range s.items[rec.Kind] {
			if existing.SubmittedBy == rec.SubmittedBy &&
				existing.Year == rec.Year && existing.Month == rec.Month {
				if s.policy == RejectDuplicates {
					return 0, core.ErrDuplicateKey
				}
				rec.ID = existing.ID
				rec.SubmittedAt = s.now()
				s.items[rec.Kind][i] = rec
				return existing.ID, nil
			}
		}
	}

	s.nextID[rec.Kind]++
	rec.ID = s.nextID[rec.Kind]
	rec.SubmittedAt = s.now()
	s.items[rec.Kind] = append(s.items[rec.Kind], rec)
	return rec.ID, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, kind core.Kind, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items[kind] {
		if existing.ID == id {
			rec.ID = id
			rec.Kind = kind
			if rec.SubmittedBy == "" {
				rec.SubmittedBy = existing.SubmittedBy
			}
			rec.SubmittedAt = s.now()
			s.items[kind][i] = rec
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *MemoryStore) Delete(_ context.Context, id int64, kind core.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items[kind] {
		if existing.ID == id {
			s.items[kind] = append(s.items[kind][:i], s.items[kind][i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *MemoryStore) Get(_ context.Context, id int64, kind core.Kind) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items[kind] {
		if existing.ID == id {
			return existing, nil
		}
	}
	return core.Record{}, core.ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, kind core.Kind, f Filter) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Record
	for _, rec := range s.items[kind] {
		if f.matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListAll(ctx context.Context, kinds []core.Kind) ([]core.Record, error) {
	var out []core.Record
	for _, kind := range kinds {
		recs, err := s.List(ctx, kind, Filter{})
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
