// Package store holds PSBT records in process memory.
//
// Every record lives in its own entry with two locks: a transition lock
// that serialises state changes (and deletion) for that id only, and a
// short-lived read/write lock that guards the committed snapshot. A
// transition may hold its record's transition lock across node calls;
// readers and transitions on other ids are never blocked by it.
package store

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"wallet-psbt/internal/model"
	"wallet-psbt/pkg/errno"
	"wallet-psbt/pkg/safe_random"
)

const idPrefix = "psbt"

// maxIDAttempts bounds retries when a generated id collides.
const maxIDAttempts = 8

type entry struct {
	txLock chan struct{}

	mu      sync.RWMutex
	rec     model.Record
	deleted bool
}

func (e *entry) snapshot() (model.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rec.Clone(), !e.deleted
}

// Store is the arena of PSBT records keyed by id.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	now   func() time.Time
	newID func(time.Time) (string, error)
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func(time.Time) (string, error)) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
		newID: func(t time.Time) (string, error) {
			return safe_random.TimestampedID(idPrefix, t)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create assigns a fresh id and inserts rec as a draft.
func (s *Store) Create(rec model.Record) (model.Record, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Status = model.StatusDraft
	rec.FinalTxID = ""

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID(rec.CreatedAt)
		if err != nil {
			return model.Record{}, fmt.Errorf("store: generate id: %w", err)
		}
		if _, taken := s.entries[id]; taken {
			continue
		}
		rec.ID = id
		s.entries[id] = &entry{txLock: make(chan struct{}, 1), rec: rec.Clone()}
		return rec.Clone(), nil
	}
	return model.Record{}, fmt.Errorf("store: could not allocate a unique id after %d attempts", maxIDAttempts)
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errno.New(errno.RecordNotFound).WithRecord(id)
	}
	return e, nil
}

// Get returns a copy of the committed record.
func (s *Store) Get(id string) (model.Record, error) {
	e, err := s.lookup(id)
	if err != nil {
		return model.Record{}, err
	}
	rec, live := e.snapshot()
	if !live {
		return model.Record{}, errno.New(errno.RecordNotFound).WithRecord(id)
	}
	return rec, nil
}

// All yields copies of every record, newest first. Each iteration takes a
// fresh snapshot, so the sequence can be ranged over again.
func (s *Store) All() iter.Seq[model.Record] {
	return func(yield func(model.Record) bool) {
		for _, rec := range s.snapshot() {
			if !yield(rec) {
				return
			}
		}
	}
}

// List collects All.
func (s *Store) List() []model.Record {
	return slices.Collect(s.All())
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) snapshot() []model.Record {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	recs := make([]model.Record, 0, len(entries))
	for _, e := range entries {
		if rec, live := e.snapshot(); live {
			recs = append(recs, rec)
		}
	}
	slices.SortFunc(recs, func(a, b model.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return recs
}

func (s *Store) acquire(ctx context.Context, e *entry, id string) error {
	select {
	case e.txLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("store: waiting for record %s: %w", id, ctx.Err())
	}
}

func release(e *entry) {
	<-e.txLock
}

// TransitionFunc computes the next version of a record. It receives a copy
// and may perform slow work; its result is committed only if it returns nil.
type TransitionFunc func(cur model.Record) (model.Record, error)

// Transition applies fn to the record if its current status is from. The
// check happens after the per-id lock is held, so of two concurrent callers
// expecting the same status only the first can succeed; the other fails
// with InvalidTransition. The committed status must be from's successor.
func (s *Store) Transition(ctx context.Context, id string, from model.Status, fn TransitionFunc) (model.Record, error) {
	e, err := s.lookup(id)
	if err != nil {
		return model.Record{}, err
	}
	if err := s.acquire(ctx, e, id); err != nil {
		return model.Record{}, err
	}
	defer release(e)

	cur, live := e.snapshot()
	if !live {
		return model.Record{}, errno.New(errno.RecordNotFound).WithRecord(id)
	}
	want, ok := from.Next()
	if cur.Status != from || !ok {
		return model.Record{}, errno.New(errno.InvalidTransition).WithRecord(id).
			WithDetail(fmt.Sprintf("status is %s, expected %s", cur.Status, from))
	}

	next, err := fn(cur)
	if err != nil {
		return model.Record{}, err
	}
	if next.Status != want {
		return model.Record{}, errno.New(errno.InvalidTransition).WithRecord(id).
			WithDetail(fmt.Sprintf("cannot move from %s to %s", from, next.Status))
	}

	// immutable fields always come from the committed record
	next.ID = cur.ID
	next.RecipientAddress = cur.RecipientAddress
	next.AmountBaseUnits = cur.AmountBaseUnits
	next.Fee = cur.Fee
	next.Description = cur.Description
	next.CreatedAt = cur.CreatedAt

	e.mu.Lock()
	e.rec = next.Clone()
	e.mu.Unlock()

	return next.Clone(), nil
}

// Delete removes the record, waiting for any in-flight transition on it.
func (s *Store) Delete(ctx context.Context, id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := s.acquire(ctx, e, id); err != nil {
		return err
	}
	defer release(e)

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return errno.New(errno.RecordNotFound).WithRecord(id)
	}
	e.deleted = true
	e.mu.Unlock()

	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}
