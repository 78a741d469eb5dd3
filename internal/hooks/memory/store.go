// Package memory provides an in-memory hook registration store for
// single-instance deployments and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/capturelabs/capturesink/internal/hooks"
)

// Store is a mutex-guarded map of registration id to registration.
type Store struct {
	mu   sync.RWMutex
	regs map[string]hooks.Registration
}

// New constructs an empty Store.
func New() *Store {
	return &Store{regs: make(map[string]hooks.Registration)}
}

// Create stores a new registration. The id must be unique.
func (s *Store) Create(_ context.Context, reg hooks.Registration) error {
	if reg.ID == "" {
		return errors.New("registration id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.regs[reg.ID]; exists {
		return errors.New("registration already exists")
	}
	s.regs[reg.ID] = reg
	return nil
}

// Get fetches a registration by id.
func (s *Store) Get(_ context.Context, id string) (hooks.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[id]
	if !ok {
		return hooks.Registration{}, hooks.ErrNotFound
	}
	return reg, nil
}

// List returns all registrations ordered by creation time, then id.
func (s *Store) List(_ context.Context) ([]hooks.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hooks.Registration, 0, len(s.regs))
	for _, reg := range s.regs {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes a registration by id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regs[id]; !ok {
		return hooks.ErrNotFound
	}
	delete(s.regs, id)
	return nil
}
