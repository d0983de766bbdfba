// Package store keeps dataset versions in memory under generated file ids.
//
// The store is append-only: Put always creates a new entry and nothing in the
// public API modifies one. Purge exists only for the retention job.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// Version is one immutable snapshot plus its lineage.
type Version struct {
	ID        string           `json:"file_id"`
	Dataset   *dataset.Dataset `json:"-"`
	ParentID  string           `json:"parent_file_id,omitempty"`
	Ancestors []string         `json:"ancestors,omitempty"`
	Operation string           `json:"operation"`
	Label     string           `json:"label,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	versions map[string]*Version
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		versions: make(map[string]*Version),
		now:      time.Now,
	}
}

// PutOptions describes where a new version came from.
type PutOptions struct {
	Operation string
	Label     string   // original filename or split label
	Parents   []string // first is the parent, the rest are extra ancestors
}

// Put stores ds under a fresh id and returns it. It never fails.
func (s *Store) Put(ds *dataset.Dataset, opts PutOptions) string {
	v := &Version{
		ID:        uuid.NewString(),
		Dataset:   ds,
		Operation: opts.Operation,
		Label:     opts.Label,
		CreatedAt: s.now().UTC(),
	}
	if len(opts.Parents) > 0 {
		v.ParentID = opts.Parents[0]
		if len(opts.Parents) > 1 {
			v.Ancestors = append([]string(nil), opts.Parents[1:]...)
		}
	}

	s.mu.Lock()
	s.versions[v.ID] = v
	s.mu.Unlock()
	return v.ID
}

// Get returns the dataset stored under id.
func (s *Store) Get(id string) (*dataset.Dataset, error) {
	v, err := s.Version(id)
	if err != nil {
		return nil, err
	}
	return v.Dataset, nil
}

// Version returns the version stored under id. The returned value is a copy.
func (s *Store) Version(id string) (Version, error) {
	s.mu.RLock()
	v, ok := s.versions[id]
	s.mu.RUnlock()
	if !ok {
		return Version{}, dataset.NotFoundError(id)
	}
	out := *v
	out.Ancestors = append([]string(nil), v.Ancestors...)
	return out, nil
}

// Len returns the number of stored versions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}

// List returns every version, newest first.
func (s *Store) List() []Version {
	s.mu.RLock()
	out := make([]Version, 0, len(s.versions))
	for _, v := range s.versions {
		c := *v
		c.Ancestors = append([]string(nil), v.Ancestors...)
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Purge removes every version created before cutoff and returns how many
// were removed.
func (s *Store) Purge(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, v := range s.versions {
		if v.CreatedAt.Before(cutoff) {
			delete(s.versions, id)
			n++
		}
	}
	return n
}
