// internal/database/match.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/models"
)

// ErrSummaryNotFound is returned by MatchRepository.Get for unknown matches.
var ErrSummaryNotFound = errors.New("match summary not found")

// MatchRepository writes match summaries to Postgres.
type MatchRepository struct {
	pool *pgxpool.Pool
}

func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// SaveMatchSummary upserts the match row and both participant rows in one
// transaction.
func (r *MatchRepository) SaveMatchSummary(ctx context.Context, sum models.MatchSummary) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return insertSummaryTx(ctx, tx, sum)
	})
	if err != nil {
		return fmt.Errorf("tx upsert match %s: %w", sum.MatchID, err)
	}
	return nil
}

// SaveBatch writes several summaries in a single transaction.
func (r *MatchRepository) SaveBatch(ctx context.Context, batch []models.MatchSummary) error {
	if len(batch) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, sum := range batch {
			if err := insertSummaryTx(ctx, tx, sum); err != nil {
				return fmt.Errorf("match %s: %w", sum.MatchID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx batch of %d summaries: %w", len(batch), err)
	}
	return nil
}

func insertSummaryTx(ctx context.Context, tx pgx.Tx, sum models.MatchSummary) error {
	rounds, err := json.Marshal(sum.Rounds)
	if err != nil {
		return err
	}
	var winnerSlot *string
	if sum.Winner != nil {
		s := sum.Winner.String()
		winnerSlot = &s
	}

	upsertMatch := `
		INSERT INTO matches (id, outcome, winner_slot, winner_id, score_a, score_b, rounds, started_at, completed_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			winner_slot = EXCLUDED.winner_slot,
			winner_id = EXCLUDED.winner_id,
			score_a = EXCLUDED.score_a,
			score_b = EXCLUDED.score_b,
			rounds = EXCLUDED.rounds,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms
	`
	if _, err := tx.Exec(ctx, upsertMatch,
		sum.MatchID, string(sum.Outcome), winnerSlot, sum.WinnerID,
		sum.FinalScores[game.SlotA], sum.FinalScores[game.SlotB], rounds,
		sum.StartedAt, sum.CompletedAt, sum.DurationMS,
	); err != nil {
		return err
	}

	for _, p := range sum.Participants {
		usage, err := json.Marshal(p.CardUsage)
		if err != nil {
			return err
		}
		var difficulty *string
		if p.AI != game.DifficultyNone {
			d := string(p.AI)
			difficulty = &d
		}
		q := `
			INSERT INTO match_participants (match_id, slot, player_id, ai_difficulty, final_score, card_usage)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (match_id, slot)
			DO UPDATE SET final_score = $5, card_usage = $6
		`
		if _, err := tx.Exec(ctx, q, sum.MatchID, p.Slot.String(), p.PlayerID, difficulty, p.FinalScore, usage); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a stored summary.
func (r *MatchRepository) Get(ctx context.Context, matchID uuid.UUID) (models.MatchSummary, error) {
	var (
		sum        models.MatchSummary
		outcome    string
		winnerSlot *string
		rounds     []byte
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, outcome, winner_slot, winner_id, score_a, score_b, rounds, started_at, completed_at, duration_ms
		FROM matches WHERE id = $1
	`, matchID)
	err := row.Scan(&sum.MatchID, &outcome, &winnerSlot, &sum.WinnerID,
		&sum.FinalScores[game.SlotA], &sum.FinalScores[game.SlotB], &rounds,
		&sum.StartedAt, &sum.CompletedAt, &sum.DurationMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MatchSummary{}, ErrSummaryNotFound
	}
	if err != nil {
		return models.MatchSummary{}, fmt.Errorf("select match %s: %w", matchID, err)
	}
	sum.Outcome = models.Outcome(outcome)
	if winnerSlot != nil {
		var w game.SlotID
		if err := w.UnmarshalText([]byte(*winnerSlot)); err != nil {
			return models.MatchSummary{}, err
		}
		sum.Winner = &w
	}
	if err := json.Unmarshal(rounds, &sum.Rounds); err != nil {
		return models.MatchSummary{}, fmt.Errorf("decode rounds: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT slot, player_id, ai_difficulty, final_score, card_usage
		FROM match_participants WHERE match_id = $1
	`, matchID)
	if err != nil {
		return models.MatchSummary{}, fmt.Errorf("select participants %s: %w", matchID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p          models.SummaryParticipant
			slot       string
			difficulty *string
			usage      []byte
		)
		if err := rows.Scan(&slot, &p.PlayerID, &difficulty, &p.FinalScore, &usage); err != nil {
			return models.MatchSummary{}, err
		}
		if err := p.Slot.UnmarshalText([]byte(slot)); err != nil {
			return models.MatchSummary{}, err
		}
		if difficulty != nil {
			p.AI = game.Difficulty(*difficulty)
		}
		if err := json.Unmarshal(usage, &p.CardUsage); err != nil {
			return models.MatchSummary{}, fmt.Errorf("decode card usage: %w", err)
		}
		sum.Participants[p.Slot] = p
	}
	return sum, rows.Err()
}

// ListByPlayer returns the matches playerID took part in, most recent first.
func (r *MatchRepository) ListByPlayer(ctx context.Context, playerID uuid.UUID, limit int) ([]models.MatchSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id FROM matches m
		JOIN match_participants p ON p.match_id = m.id
		WHERE p.player_id = $1
		ORDER BY m.completed_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches for %s: %w", playerID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}

	out := make([]models.MatchSummary, 0, len(ids))
	for _, id := range ids {
		sum, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}
