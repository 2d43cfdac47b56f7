// internal/broker/nats.go
package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SubjectPrefix roots every match subject: duel.match.<matchID>.<eventType>.
const SubjectPrefix = "duel.match"

// Connect dials the NATS server at url.
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher fans engine events out to NATS. Register Observe with
// session.Engine.Observe.
type Publisher struct {
	conn Conn
	log  logrus.FieldLogger
}

func NewPublisher(conn Conn, logger logrus.FieldLogger) *Publisher {
	return &Publisher{conn: conn, log: logger}
}

// Subject returns the subject an event is published on.
func Subject(ev session.Event) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, ev.MatchID, ev.Type)
}

// Observe publishes ev. Failures are logged and never reach the engine.
func (p *Publisher) Observe(ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).WithField("match_id", ev.MatchID).Error("failed to marshal event")
		return
	}
	subject := Subject(ev)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"match_id": ev.MatchID,
			"subject":  subject,
		}).Warn("failed to publish event")
	}
}
