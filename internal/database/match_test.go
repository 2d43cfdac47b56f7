// internal/database/match_test.go
package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepository connects to DATABASE_URL and skips when it is unset.
func newTestRepository(t *testing.T) *MatchRepository {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	return NewMatchRepository(pool)
}

func completedSummary(t *testing.T) models.MatchSummary {
	t.Helper()
	s := game.NewMatchState(uuid.New(), game.Human(uuid.New()), game.Bot(game.DifficultyHard), time.Now().Add(-time.Minute))
	for _, pair := range [][2]game.Card{{1, 7}, {3, 5}, {5, 3}, {7, 1}, {2, 6}, {4, 4}, {6, 2}} {
		var err error
		s, _, err = game.ResolveRound(s, pair[0], pair[1])
		require.NoError(t, err)
	}
	game.Complete(&s, time.Now())
	return models.NewMatchSummary(s, models.OutcomeComplete, time.Now())
}

func TestSaveAndGetSummary(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	sum := completedSummary(t)

	require.NoError(t, repo.SaveMatchSummary(ctx, sum))
	require.NoError(t, repo.SaveMatchSummary(ctx, sum), "saving twice is an upsert")

	got, err := repo.Get(ctx, sum.MatchID)
	require.NoError(t, err)
	assert.Equal(t, sum.MatchID, got.MatchID)
	assert.Equal(t, models.OutcomeComplete, got.Outcome)
	assert.Equal(t, sum.FinalScores, got.FinalScores)
	assert.Equal(t, sum.Winner, got.Winner)
	assert.Len(t, got.Rounds, game.Rounds)
	assert.Equal(t, sum.Participants[game.SlotA].CardUsage, got.Participants[game.SlotA].CardUsage)
	assert.Equal(t, game.DifficultyHard, got.Participants[game.SlotB].AI)
	assert.WithinDuration(t, sum.CompletedAt, got.CompletedAt, time.Millisecond)
}

func TestSaveBatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	batch := []models.MatchSummary{completedSummary(t), completedSummary(t)}

	require.NoError(t, repo.SaveBatch(ctx, batch))
	for _, sum := range batch {
		_, err := repo.Get(ctx, sum.MatchID)
		assert.NoError(t, err)
	}

	_, err := repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSummaryNotFound)
}

func TestListByPlayer(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	sum := completedSummary(t)
	require.NoError(t, repo.SaveMatchSummary(ctx, sum))

	list, err := repo.ListByPlayer(ctx, sum.Participants[game.SlotA].PlayerID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sum.MatchID, list[0].MatchID)
}
