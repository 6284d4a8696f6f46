// Package memory is the in-memory docstore backend, used for tests and
// the default development configuration.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetplanner/internal/docstore"
)

type Store struct {
	mu          sync.Mutex
	collections map[string][]docstore.Document
	now         func() time.Time
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string][]docstore.Document),
		now:         time.Now,
	}
}

// NewWithClock pins the write clock, so tests can assert on
// server-assigned timestamps.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// Query returns matching documents in insertion order.
func (s *Store) Query(_ context.Context, collection string, filters []docstore.Where) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []docstore.Document
	for _, doc := range s.collections[collection] {
		matched := true
		for _, w := range filters {
			ok, err := docstore.Matches(doc, w)
			if err != nil {
				return nil, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, clone(doc))
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.collections[collection] {
		if doc.ID == id {
			return clone(doc), nil
		}
	}
	return docstore.Document{}, docstore.ErrNotFound
}

func (s *Store) Insert(_ context.Context, collection string, fields docstore.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := docstore.Document{
		ID:     uuid.NewString(),
		Fields: docstore.ResolveTimestamps(fields, s.now()),
	}
	s.collections[collection] = append(s.collections[collection], doc)
	return doc.ID, nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i, doc := range docs {
		if doc.ID != id {
			continue
		}
		resolved := docstore.ResolveTimestamps(fields, s.now())
		merged := clone(doc)
		for k, v := range resolved {
			merged.Fields[k] = v
		}
		docs[i] = merged
		return nil
	}
	return docstore.ErrNotFound
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i, doc := range docs {
		if doc.ID == id {
			s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return docstore.ErrNotFound
}

func clone(doc docstore.Document) docstore.Document {
	fields := make(docstore.Fields, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	return docstore.Document{ID: doc.ID, Fields: fields}
}
