// internal/historian/historian.go is the batching loop behind cmd/historian: it pops
// match summaries from the Redis queue and persists them to PostgreSQL.
package historian

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/sirupsen/logrus"
)

// popTimeout is the BLPOP wait; Redis does not go below one second.
const popTimeout = time.Second

// maxAttempts is how many times a whole batch is retried before it is split.
const maxAttempts = 3

// Queue yields queued summaries. ok is false when nothing arrived within timeout.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (sum models.MatchSummary, ok bool, err error)
}

// Store persists a batch atomically.
type Store interface {
	SaveBatch(ctx context.Context, batch []models.MatchSummary) error
}

// DeadLetter receives summaries the store keeps rejecting.
type DeadLetter interface {
	SaveMatchSummary(ctx context.Context, sum models.MatchSummary) error
}

// Service drains the queue into the store in batches.
type Service struct {
	queue      Queue
	store      Store
	dead       DeadLetter
	batchSize  int
	flushDelay time.Duration
	log        logrus.FieldLogger

	batchMu  sync.Mutex
	batch    []models.MatchSummary
	attempts int
}

func New(queue Queue, store Store, batchSize int, flushDelay time.Duration, logger logrus.FieldLogger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	return &Service{
		queue:      queue,
		store:      store,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		log:        logger,
		batch:      make([]models.MatchSummary, 0, batchSize),
	}
}

// WithDeadLetter routes summaries that fail on their own to dl instead of
// dropping them.
func (s *Service) WithDeadLetter(dl DeadLetter) *Service {
	s.dead = dl
	return s
}

// Run reads until ctx is cancelled, flushing whenever the batch is full and on
// every tick. A last flush runs on the way out.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	s.log.Info("historian started")
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.flush(flushCtx)
		s.log.Info("historian stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		default:
			sum, ok, err := s.queue.Pop(ctx, popTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.WithError(err).Error("failed to pop match summary")
				continue
			}
			if !ok {
				continue
			}
			s.append(ctx, sum)
		}
	}
}

// append adds a summary and flushes when the batch threshold is reached.
func (s *Service) append(ctx context.Context, sum models.MatchSummary) {
	s.batchMu.Lock()
	s.batch = append(s.batch, sum)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.flush(ctx)
	}
}

// flush writes the current batch in a single transaction. A failed batch is
// kept for the next flush until it has failed maxAttempts times or outgrown
// batchSize. Then it is split in halves until the rejected summaries are
// isolated and sent to the dead letter.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if len(s.batch) == 0 {
		return
	}
	batchCopy := slices.Clone(s.batch)

	err := s.store.SaveBatch(ctx, batchCopy)
	if err == nil {
		s.batch = s.batch[:0]
		s.attempts = 0
		s.log.WithField("count", len(batchCopy)).Debug("flushed match summaries")
		return
	}
	s.attempts++
	s.log.WithError(err).WithFields(logrus.Fields{
		"pending": len(batchCopy),
		"attempt": s.attempts,
	}).Error("failed to flush match summaries")
	if ctx.Err() != nil || (s.attempts < maxAttempts && len(batchCopy) <= s.batchSize) {
		return
	}

	s.batch = append(s.batch[:0], s.split(ctx, batchCopy)...)
	s.attempts = 0
}

// split saves each half of batch separately and returns what could not be
// settled because ctx ended. A single rejected summary goes to the dead letter.
func (s *Service) split(ctx context.Context, batch []models.MatchSummary) []models.MatchSummary {
	if len(batch) > 1 {
		mid := len(batch) / 2
		return slices.Concat(s.settle(ctx, batch[:mid]), s.settle(ctx, batch[mid:]))
	}
	s.deadLetter(ctx, batch[0])
	return nil
}

func (s *Service) settle(ctx context.Context, batch []models.MatchSummary) []models.MatchSummary {
	if err := s.store.SaveBatch(ctx, batch); err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return batch
	}
	return s.split(ctx, batch)
}

func (s *Service) deadLetter(ctx context.Context, sum models.MatchSummary) {
	entry := s.log.WithField("match_id", sum.MatchID)
	if s.dead == nil {
		entry.Error("dropping match summary rejected by store")
		return
	}
	if err := s.dead.SaveMatchSummary(ctx, sum); err != nil {
		entry.WithError(err).Error("failed to dead-letter match summary")
		return
	}
	entry.Warn("match summary moved to dead letter")
}

// Pending reports how many summaries are waiting for the next flush.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
