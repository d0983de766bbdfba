package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

func sample() *dataset.Dataset {
	return dataset.MustNew([]string{"a"}, [][]dataset.Value{{dataset.Number(1)}})
}

func TestPutGet(t *testing.T) {
	s := New()
	ds := sample()

	id := s.Put(ds, PutOptions{Operation: "upload", Label: "in.xlsx"})
	require.NotEmpty(t, id)

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Same(t, ds, got)

	v, err := s.Version(id)
	require.NoError(t, err)
	assert.Equal(t, "upload", v.Operation)
	assert.Equal(t, "in.xlsx", v.Label)
	assert.Empty(t, v.ParentID)
	assert.False(t, v.CreatedAt.IsZero())
}

func TestGetUnknown(t *testing.T) {
	_, err := New().Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrNotFound))
}

func TestLineage(t *testing.T) {
	s := New()
	a := s.Put(sample(), PutOptions{Operation: "upload"})
	b := s.Put(sample(), PutOptions{Operation: "upload"})
	c := s.Put(sample(), PutOptions{Operation: "merge", Parents: []string{a, b}})

	v, err := s.Version(c)
	require.NoError(t, err)
	assert.Equal(t, a, v.ParentID)
	assert.Equal(t, []string{b}, v.Ancestors)
}

func TestIDsAreUnique(t *testing.T) {
	s := New()
	ds := sample()

	var wg sync.WaitGroup
	ids := make([]string, 200)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = s.Put(ds, PutOptions{Operation: "upload"})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, len(ids), s.Len())
}

func TestPurge(t *testing.T) {
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	old := s.Put(sample(), PutOptions{Operation: "upload"})
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	fresh := s.Put(sample(), PutOptions{Operation: "upload"})

	removed := s.Purge(base.Add(24 * time.Hour))
	assert.Equal(t, 1, removed)

	_, err := s.Get(old)
	assert.True(t, errors.Is(err, dataset.ErrNotFound))
	_, err = s.Get(fresh)
	assert.NoError(t, err)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, fresh, list[0].ID)
}
