// internal/broker/nats_test.go
package broker

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func TestSubject(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ev := session.Event{Type: session.EventRoundResolved, MatchID: id}
	assert.Equal(t, "duel.match.6ba7b810-9dad-11d1-80b4-00c04fd430c8.round_resolved", Subject(ev))
}

func TestPublisherObserve(t *testing.T) {
	logger, hook := test.NewNullLogger()
	conn := &fakeConn{}
	p := NewPublisher(conn, logger)

	ev := session.Event{Type: session.EventMatchStarted, MatchID: uuid.New(), Round: 1, Version: 1, At: time.Now()}
	p.Observe(ev)

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, Subject(ev), conn.msgs[0].subject)
	var decoded session.Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &decoded))
	assert.Equal(t, ev.MatchID, decoded.MatchID)
	assert.Equal(t, session.EventMatchStarted, decoded.Type)
	assert.Empty(t, hook.Entries)
}

func TestPublisherLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewPublisher(conn, logger)

	p.Observe(session.Event{Type: session.EventMatchAbandoned, MatchID: uuid.New()})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to publish event", hook.LastEntry().Message)
}
