package repository

import (
	"context"
	"testing"
	"time"

	"coupon_subscription/internal/domain/subscription/model"
	"coupon_subscription/internal/store"
	"coupon_subscription/pkg/apperr"
	baseModel "coupon_subscription/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sub(id, user string, status model.Status, created time.Time) model.UserSubscription {
	return model.UserSubscription{
		BaseModel: baseModel.BaseModel{ID: id, CreatedAt: created, UpdatedAt: created},
		UserID:    user,
		PlanType:  model.PlanFree,
		Status:    status,
		StartDate: created,
	}
}

func TestSubscriptionRepository(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := NewSubscriptionRepository()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		subs := []model.UserSubscription{
			sub("a", "u1", model.StatusCancelled, t0),
			sub("b", "u1", model.StatusActive, t0.Add(time.Hour)),
			sub("c", "u2", model.StatusActive, t0),
			sub("d", "u1", model.StatusExpired, t0.Add(2*time.Hour)),
		}
		subs[3].AppliedUsages = []string{"usage-1"}
		return repo.SaveAll(tx, subs)
	}))

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		t.Run("FindByUser is newest first", func(t *testing.T) {
			subs, err := repo.FindByUser(tx, "u1")
			require.NoError(t, err)
			ids := []string{}
			for _, s := range subs {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, []string{"d", "b", "a"}, ids)
		})

		t.Run("FindActive", func(t *testing.T) {
			active, err := repo.FindActive(tx, "u1")
			require.NoError(t, err)
			require.NotNil(t, active)
			assert.Equal(t, "b", active.ID)

			none, err := repo.FindActive(tx, "nobody")
			require.NoError(t, err)
			assert.Nil(t, none)
		})

		t.Run("FindByUsage matches any status", func(t *testing.T) {
			found, err := repo.FindByUsage(tx, "u1", "usage-1")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "d", found.ID)

			other, err := repo.FindByUsage(tx, "u2", "usage-1")
			require.NoError(t, err)
			assert.Nil(t, other)
		})

		t.Run("GetByID missing", func(t *testing.T) {
			_, err := repo.GetByID(tx, "zzz")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
		return nil
	}))

	t.Run("Save replaces by id", func(t *testing.T) {
		require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
			s, err := repo.GetByID(tx, "b")
			require.NoError(t, err)
			s.Status = model.StatusExpired
			return repo.Save(tx, s)
		}))
		require.NoError(t, st.View(ctx, func(tx store.Tx) error {
			all, err := repo.List(tx)
			require.NoError(t, err)
			assert.Len(t, all, 4)
			active, err := repo.FindActive(tx, "u1")
			require.NoError(t, err)
			assert.Nil(t, active)
			return nil
		}))
	})
}
