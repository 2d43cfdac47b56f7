// internal/storage/archive.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotArchived is returned by Get for matches the archive has never seen.
var ErrNotArchived = errors.New("match not archived")

// Archive keeps match summaries in a local SQLite file. It serves single-node
// deployments that run without Postgres.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive at path and runs migrations. ":memory:"
// gives a private in-memory archive.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS match_summaries (
			match_id     TEXT PRIMARY KEY,
			outcome      TEXT NOT NULL,
			score_a      INTEGER NOT NULL,
			score_b      INTEGER NOT NULL,
			completed_at INTEGER NOT NULL,
			summary_json TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS match_players (
			match_id  TEXT NOT NULL REFERENCES match_summaries(match_id),
			slot      TEXT NOT NULL,
			player_id TEXT NOT NULL,
			PRIMARY KEY (match_id, slot)
		);
		CREATE INDEX IF NOT EXISTS match_players_player ON match_players(player_id);
	`)
	return err
}

// SaveMatchSummary upserts a summary.
func (a *Archive) SaveMatchSummary(ctx context.Context, sum models.MatchSummary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_summaries (match_id, outcome, score_a, score_b, completed_at, summary_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET
			outcome = excluded.outcome,
			score_a = excluded.score_a,
			score_b = excluded.score_b,
			completed_at = excluded.completed_at,
			summary_json = excluded.summary_json
	`, sum.MatchID.String(), string(sum.Outcome),
		sum.FinalScores[game.SlotA], sum.FinalScores[game.SlotB],
		sum.CompletedAt.UnixMilli(), string(data))
	if err != nil {
		return fmt.Errorf("insert summary %s: %w", sum.MatchID, err)
	}

	for _, p := range sum.Participants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_players (match_id, slot, player_id) VALUES (?, ?, ?)
			ON CONFLICT(match_id, slot) DO UPDATE SET player_id = excluded.player_id
		`, sum.MatchID.String(), p.Slot.String(), p.PlayerID.String())
		if err != nil {
			return fmt.Errorf("insert player %s: %w", p.PlayerID, err)
		}
	}
	return tx.Commit()
}

// Get returns the archived summary of a match.
func (a *Archive) Get(ctx context.Context, matchID uuid.UUID) (models.MatchSummary, error) {
	var data string
	err := a.db.QueryRowContext(ctx,
		"SELECT summary_json FROM match_summaries WHERE match_id = ?", matchID.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MatchSummary{}, ErrNotArchived
	}
	if err != nil {
		return models.MatchSummary{}, err
	}
	return decode(data)
}

// ListByPlayer returns the matches playerID took part in, most recent first.
func (a *Archive) ListByPlayer(ctx context.Context, playerID uuid.UUID, limit int) ([]models.MatchSummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.summary_json FROM match_summaries s
		JOIN match_players p ON p.match_id = s.match_id
		WHERE p.player_id = ?
		ORDER BY s.completed_at DESC LIMIT ?
	`, playerID.String(), limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]models.MatchSummary, error) {
	defer rows.Close()
	var out []models.MatchSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		sum, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func decode(data string) (models.MatchSummary, error) {
	var sum models.MatchSummary
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return models.MatchSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	return sum, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}
