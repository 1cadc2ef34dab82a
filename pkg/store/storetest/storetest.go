// Package storetest runs a shared behaviour suite against ComponentStore backends.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/pipeforge/pkg/store"
)

// Run exercises s. newStore must return an empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) store.ComponentStore) {
	ctx := context.Background()

	t.Run("Get missing", func(t *testing.T) {
		s := newStore(t)

		rec, err := s.GetByID(ctx, "component-missing")
		require.NoError(t, err)
		assert.Nil(t, rec)

		rec, err = s.GetByURL(ctx, "https://example.com/missing.yaml")
		require.NoError(t, err)
		assert.Nil(t, rec)

		ok, err := s.ExistsByURL(ctx, "https://example.com/missing.yaml")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Save and get", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Save(ctx, store.Record{
			ID:   "component-abc",
			URL:  "https://example.com/a.yaml",
			Data: "name: A\n",
		}))

		rec, err := s.GetByID(ctx, "component-abc")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "https://example.com/a.yaml", rec.URL)
		assert.Equal(t, "name: A\n", rec.Data)
		assert.NotZero(t, rec.CreatedAt)
		assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

		byURL, err := s.GetByURL(ctx, "https://example.com/a.yaml")
		require.NoError(t, err)
		require.NotNil(t, byURL)
		assert.Equal(t, "component-abc", byURL.ID)

		ok, err := s.ExistsByURL(ctx, "https://example.com/a.yaml")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Merge preserves createdAt and custom fields", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Save(ctx, store.Record{
			ID:    "component-merge",
			URL:   "https://example.com/old.yaml",
			Data:  "old",
			Extra: map[string]any{"favorite": true, "label": "mine"},
		}))
		first, err := s.GetByID(ctx, "component-merge")
		require.NoError(t, err)
		require.NotNil(t, first)

		require.NoError(t, s.Save(ctx, store.Record{
			ID:        "component-merge",
			URL:       "https://example.com/new.yaml",
			Data:      "new",
			CreatedAt: 1,
			Extra:     map[string]any{"label": "theirs"},
		}))

		second, err := s.GetByID(ctx, "component-merge")
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
		assert.GreaterOrEqual(t, second.UpdatedAt, first.UpdatedAt)
		assert.Equal(t, "new", second.Data)
		assert.Equal(t, "https://example.com/new.yaml", second.URL)
		assert.Equal(t, true, second.Extra["favorite"])
		assert.Equal(t, "theirs", second.Extra["label"])
	})

	t.Run("Empty url keeps previous url", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Save(ctx, store.Record{ID: "component-u", URL: "https://example.com/u.yaml", Data: "x"}))
		require.NoError(t, s.Save(ctx, store.Record{ID: "component-u", Data: "x"}))

		rec, err := s.GetByID(ctx, "component-u")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "https://example.com/u.yaml", rec.URL)
	})

	t.Run("Concurrent identical saves converge", func(t *testing.T) {
		s := newStore(t)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Save(ctx, store.Record{ID: "component-race", URL: "https://example.com/r.yaml", Data: "same"})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		rec, err := s.GetByID(ctx, "component-race")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "same", rec.Data)

		all, err := s.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("List honours limit", func(t *testing.T) {
		s := newStore(t)

		for i := 0; i < 5; i++ {
			require.NoError(t, s.Save(ctx, store.Record{ID: fmt.Sprintf("component-%d", i), Data: "x"}))
		}

		recs, err := s.List(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, recs, 3)

		recs, err = s.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, recs, 5)
	})
}
