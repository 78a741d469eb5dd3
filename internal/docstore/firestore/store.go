// Package firestore provides the Firestore-backed document store.
//
// Revisions are the server-assigned update time of the Firestore document,
// in nanoseconds since the epoch. Conditional writes run inside a Firestore
// transaction so the compare and the set commit atomically.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/capturelabs/capturesink/internal/docstore"
)

// Config identifies the Firestore database backing the store.
type Config struct {
	ProjectID string
	// Database selects a named database; empty means the default one.
	Database string
}

// Store persists documents as Firestore documents with a single data field.
type Store struct {
	client *firestore.Client
}

// New connects a Firestore-backed Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore.project_id is required")
	}
	var (
		client *firestore.Client
		err    error
	)
	if cfg.Database != "" {
		client, err = firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.Database)
	} else {
		client, err = firestore.NewClient(ctx, cfg.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("connect firestore: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Get loads a document snapshot and derives the revision from its update
// time.
func (s *Store) Get(ctx context.Context, collection, key string) (docstore.Document, string, error) {
	snap, err := s.client.Collection(collection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return docstore.Document{}, "", docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, "", fmt.Errorf("get document: %w", err)
	}
	return snapshotDocument(snap), snapshotRevision(snap), nil
}

// ConditionalSet compares the snapshot revision and writes inside one
// transaction. docstore.NoRevision requires the document to be absent.
func (s *Store) ConditionalSet(ctx context.Context, collection, key string, doc docstore.Document, expectedRevision string) error {
	ref := s.client.Collection(collection).Doc(key)
	content := map[string]any{"data": doc.Data}
	if doc.Data == nil {
		content["data"] = map[string]any{}
	}
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			if expectedRevision != docstore.NoRevision {
				return docstore.ErrConflict
			}
		case err != nil:
			return fmt.Errorf("read document: %w", err)
		default:
			if expectedRevision == docstore.NoRevision || snapshotRevision(snap) != expectedRevision {
				return docstore.ErrConflict
			}
		}
		return tx.Set(ref, content)
	})
	if err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			return docstore.ErrConflict
		}
		return fmt.Errorf("conditional set: %w", err)
	}
	return nil
}

// Delete removes a document, reporting docstore.ErrNotFound for a missing
// one. Firestore deletes are otherwise idempotent, so the existence check
// runs in the same transaction as the delete.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	ref := s.client.Collection(collection).Doc(key)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return docstore.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		return tx.Delete(ref)
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.ErrNotFound
		}
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// ListKeys walks the collection's document refs without reading contents.
func (s *Store) ListKeys(ctx context.Context, collection string) ([]string, error) {
	iter := s.client.Collection(collection).DocumentRefs(ctx)
	keys := []string{}
	for {
		ref, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate document refs: %w", err)
		}
		keys = append(keys, ref.ID)
	}
	sort.Strings(keys)
	return keys, nil
}

func snapshotDocument(snap *firestore.DocumentSnapshot) docstore.Document {
	data, _ := snap.Data()["data"].(map[string]any)
	return docstore.Document{Data: data}
}

func snapshotRevision(snap *firestore.DocumentSnapshot) string {
	return strconv.FormatInt(snap.UpdateTime.UnixNano(), 10)
}
