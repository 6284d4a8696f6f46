// Package docstore defines the document store boundary: schemaless
// collections of field maps queried with simple field predicates, the
// shape the rest of the application persists through.
package docstore

import (
	"context"
	"errors"
	"time"
)

// Comparison operators accepted by Query.
const (
	OpEqual   = "=="
	OpGreater = ">="
	OpLess    = "<="
)

type (
	Fields map[string]any

	// Document is a stored record with its store-assigned identifier.
	Document struct {
		ID     string
		Fields Fields
	}

	// Where is a single field predicate. Time-valued fields compare
	// chronologically, everything else by equality only.
	Where struct {
		Field string
		Op    string
		Value any
	}

	// Store is the port every backend implements. Query results carry
	// no ordering guarantee beyond insertion order per backend.
	Store interface {
		Query(ctx context.Context, collection string, filters []Where) ([]Document, error)
		Get(ctx context.Context, collection, id string) (Document, error)
		Insert(ctx context.Context, collection string, fields Fields) (string, error)
		Update(ctx context.Context, collection, id string, fields Fields) error
		Delete(ctx context.Context, collection, id string) error
	}
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrInvalidOp = errors.New("invalid filter operator")
)

// serverTimestamp is the sentinel resolved to the store's write time, so
// creation instants never depend on a client clock.
type serverTimestamp struct{}

// ServerTimestamp returns the write-time sentinel for use as a field
// value in Insert and Update.
func ServerTimestamp() any {
	return serverTimestamp{}
}

// ResolveTimestamps replaces ServerTimestamp sentinels with now.
// Backends call this at write time.
func ResolveTimestamps(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now.UTC()
			continue
		}
		out[k] = v
	}
	return out
}

// Matches evaluates a predicate against a document.
func Matches(doc Document, w Where) (bool, error) {
	v, ok := doc.Fields[w.Field]
	if !ok {
		return false, nil
	}
	switch w.Op {
	case OpEqual:
		return equal(v, w.Value), nil
	case OpGreater, OpLess:
		a, aok := asTime(v)
		b, bok := asTime(w.Value)
		if !aok || !bok {
			return false, nil
		}
		if w.Op == OpGreater {
			return !a.Before(b), nil
		}
		return !a.After(b), nil
	}
	return false, ErrInvalidOp
}

func equal(a, b any) bool {
	if at, ok := asTime(a); ok {
		if bt, bok := asTime(b); bok {
			return at.Equal(bt)
		}
		return false
	}
	return a == b
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}
