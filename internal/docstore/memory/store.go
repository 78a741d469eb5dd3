// Package memory provides an in-memory document store for development and
// testing. Revisions are a per-document write counter.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/capturelabs/capturesink/internal/docstore"
)

type record struct {
	doc     docstore.Document
	version uint64
}

// Store is a mutex-guarded map of collection/key to document. Documents
// are deep-copied on the way in and out, so callers can never alias
// stored state.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]record
}

// New constructs an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]map[string]record)}
}

// Get fetches a copy of the document and its revision.
func (s *Store) Get(_ context.Context, collection, key string) (docstore.Document, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[collection][key]
	if !ok {
		return docstore.Document{}, "", docstore.ErrNotFound
	}
	return cloneDocument(rec.doc), strconv.FormatUint(rec.version, 10), nil
}

// ConditionalSet writes the document when the stored version still matches
// expectedRevision. docstore.NoRevision means the document must not exist.
func (s *Store) ConditionalSet(_ context.Context, collection, key string, doc docstore.Document, expectedRevision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.docs[collection]
	if !ok {
		col = make(map[string]record)
		s.docs[collection] = col
	}
	rec, exists := col[key]
	if expectedRevision == docstore.NoRevision {
		if exists {
			return docstore.ErrConflict
		}
		col[key] = record{doc: cloneDocument(doc), version: 1}
		return nil
	}
	if !exists || strconv.FormatUint(rec.version, 10) != expectedRevision {
		return docstore.ErrConflict
	}
	col[key] = record{doc: cloneDocument(doc), version: rec.version + 1}
	return nil
}

// Delete removes a document by key.
func (s *Store) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.docs[collection]
	if _, ok := col[key]; !ok {
		return docstore.ErrNotFound
	}
	delete(col, key)
	return nil
}

// ListKeys returns the sorted document keys of a collection.
func (s *Store) ListKeys(_ context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.docs[collection]
	keys := make([]string, 0, len(col))
	for k := range col {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func cloneDocument(doc docstore.Document) docstore.Document {
	cloned, _ := cloneValue(doc.Data).(map[string]any)
	return docstore.Document{Data: cloned}
}

// cloneValue deep-copies the JSON-shaped value; scalars are immutable and
// shared.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}
