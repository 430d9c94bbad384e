package memory

import (
	"context"
	"fmt"
	"testing"

	"cosmetic-analyzer/internal/core/workflow"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, historyLimit int) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStoreWithClient(client, historyLimit)
}

func TestProfileRoundTrip(t *testing.T) {
	store := testStore(t, 10)
	ctx := context.Background()

	profile := &common.UserProfile{
		UserKey:   "user-1",
		SkinType:  common.SkinSensitive,
		Allergies: []string{"fragrance", "retinol"},
		Expertise: common.ExpertiseExpert,
	}
	require.NoError(t, store.SaveProfile(ctx, "user-1", profile))

	loaded, err := store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, profile.SkinType, loaded.SkinType)
	assert.Equal(t, profile.Allergies, loaded.Allergies)
	assert.Equal(t, profile.Expertise, loaded.Expertise)
}

func TestGetProfileMissing(t *testing.T) {
	store := testStore(t, 10)

	loaded, err := store.GetProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestHistoryNewestFirstAndTrimmed(t *testing.T) {
	store := testStore(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result := &workflow.Result{
			RunID:     fmt.Sprintf("run-%d", i),
			Narrative: "analysis",
		}
		require.NoError(t, store.AppendHistory(ctx, "user-1", result))
	}

	history, err := store.ListHistory(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	// 最新在前，舊的被裁掉
	assert.Equal(t, "run-4", history[0].RunID)
	assert.Equal(t, "run-3", history[1].RunID)
	assert.Equal(t, "run-2", history[2].RunID)
}

func TestHistoryIsolatedPerUser(t *testing.T) {
	store := testStore(t, 10)
	ctx := context.Background()

	require.NoError(t, store.AppendHistory(ctx, "user-a", &workflow.Result{RunID: "a-1"}))
	require.NoError(t, store.AppendHistory(ctx, "user-b", &workflow.Result{RunID: "b-1"}))

	historyA, err := store.ListHistory(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, historyA, 1)
	assert.Equal(t, "a-1", historyA[0].RunID)

	historyB, err := store.ListHistory(ctx, "user-b")
	require.NoError(t, err)
	require.Len(t, historyB, 1)
	assert.Equal(t, "b-1", historyB[0].RunID)
}

func TestNilStoreDegradesGracefully(t *testing.T) {
	var store *Store

	err := store.AppendHistory(context.Background(), "user-1", &workflow.Result{RunID: "x"})
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)

	_, err = store.GetProfile(context.Background(), "user-1")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}
