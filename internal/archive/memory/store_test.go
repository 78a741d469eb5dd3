package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStorePutAndReadBack(t *testing.T) {
	t.Parallel()

	store := New()
	uri, err := store.PutObject(context.Background(), "captures/espn.com/abc.json", "application/json", strings.NewReader(`{"task":{}}`))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "mem://captures/espn.com/abc.json" {
		t.Fatalf("PutObject() uri = %q", uri)
	}

	data, ok := store.Object("captures/espn.com/abc.json")
	if !ok || !bytes.Equal(data, []byte(`{"task":{}}`)) {
		t.Fatalf("Object() = %q, %v", data, ok)
	}

	// Mutating the returned slice must not affect the stored copy.
	data[0] = 'X'
	again, _ := store.Object("captures/espn.com/abc.json")
	if again[0] != '{' {
		t.Fatal("expected Object to return a copy")
	}

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
}

func TestStoreRequiresPath(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.PutObject(context.Background(), "", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty path")
	}
}
