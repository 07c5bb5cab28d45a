package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestMemoryStore_UpdateAndView(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t.Run("Missing collection reads as empty", func(t *testing.T) {
		err := s.View(ctx, func(tx Tx) error {
			items, err := Collection[record](tx, "things")
			require.NoError(t, err)
			assert.Empty(t, items)
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("Put is visible after commit", func(t *testing.T) {
		err := s.Update(ctx, func(tx Tx) error {
			return tx.Put("things", []record{{ID: "a", Count: 1}})
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx Tx) error {
			items, err := Collection[record](tx, "things")
			require.NoError(t, err)
			assert.Equal(t, []record{{ID: "a", Count: 1}}, items)
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("Staged writes are read back inside the transaction", func(t *testing.T) {
		err := s.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.Put("things", []record{{ID: "b"}}))
			items, err := Collection[record](tx, "things")
			require.NoError(t, err)
			assert.Equal(t, "b", items[0].ID)
			return errors.New("abort")
		})
		assert.EqualError(t, err, "abort")
	})

	t.Run("Failed transaction discards writes", func(t *testing.T) {
		err := s.View(ctx, func(tx Tx) error {
			items, err := Collection[record](tx, "things")
			require.NoError(t, err)
			assert.Equal(t, "a", items[0].ID)
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("Put in View is rejected", func(t *testing.T) {
		err := s.View(ctx, func(tx Tx) error {
			return tx.Put("things", []record{})
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}

func TestMemoryStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, func(tx Tx) error {
				items, err := Collection[record](tx, "counter")
				if err != nil {
					return err
				}
				if len(items) == 0 {
					items = []record{{ID: "c"}}
				}
				items[0].Count++
				return tx.Put("counter", items)
			})
		}()
	}
	wg.Wait()

	err := s.View(ctx, func(tx Tx) error {
		items, err := Collection[record](tx, "counter")
		require.NoError(t, err)
		assert.Equal(t, 50, items[0].Count)
		return nil
	})
	assert.NoError(t, err)
}

type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (f *flakyStore) Update(ctx context.Context, fn func(Tx) error) error {
	f.calls++
	if f.calls <= f.failures {
		return ErrConflict
	}
	return f.MemoryStore.Update(ctx, fn)
}

func TestUpdateWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Retries conflicts until success", func(t *testing.T) {
		s := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
		err := UpdateWithRetry(ctx, s, 5, func(tx Tx) error {
			return tx.Put("x", []record{{ID: "ok"}})
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, s.calls)
	})

	t.Run("Surfaces conflict after exhausting attempts", func(t *testing.T) {
		s := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
		err := UpdateWithRetry(ctx, s, 3, func(tx Tx) error { return nil })
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 3, s.calls)
	})

	t.Run("Does not retry other errors", func(t *testing.T) {
		s := &flakyStore{MemoryStore: NewMemoryStore()}
		boom := errors.New("boom")
		err := UpdateWithRetry(ctx, s, 3, func(tx Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, s.calls)
	})
}
