// internal/session/sink.go
package session

import (
	"context"

	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/sirupsen/logrus"
)

// SummarySink durably records finished matches. Implementations live in the
// database, cache and storage packages.
type SummarySink interface {
	SaveMatchSummary(ctx context.Context, summary models.MatchSummary) error
}

// LogSink only logs summaries. It is used when no persistence backend is configured.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) SaveMatchSummary(_ context.Context, sum models.MatchSummary) error {
	s.Log.WithFields(logrus.Fields{
		"match_id":     sum.MatchID,
		"outcome":      sum.Outcome,
		"final_scores": sum.FinalScores,
		"rounds":       len(sum.Rounds),
		"duration_ms":  sum.DurationMS,
	}).Info("match summary")
	return nil
}
