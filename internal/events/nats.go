package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	// JetStream publishes with acknowledgements; a stream covering
	// "<prefix>.>" must exist on the server.
	JetStream bool
}

// NATSPublisher publishes events as JSON on "<prefix>.<type>".
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// NewNATSPublisher connects to the server described by cfg.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("tutoragent"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEventBus, "connect to NATS").
			WithContext("url", cfg.URL).Build()
	}
	p := &NATSPublisher{conn: conn, prefix: strings.TrimSuffix(cfg.SubjectPrefix, ".")}
	if p.prefix == "" {
		p.prefix = "tutoragent"
	}
	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryEventBus, "create JetStream context").Build()
		}
		p.js = js
	}
	slog.Info("NATS event publisher connected", "url", cfg.URL, "subject_prefix", p.prefix, "jetstream", cfg.JetStream)
	return p, nil
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t Type) string { return Subject(p.prefix, t) }

// Subject joins a prefix and an event type into a NATS subject.
func Subject(prefix string, t Type) string { return prefix + "." + string(t) }

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode event").Build()
	}
	subject := p.Subject(e.Type)
	if p.js != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryEventBus, "publish event").
				WithContext("subject", subject).Build()
		}
		return nil
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryEventBus, "publish event").
			WithContext("subject", subject).Build()
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	if err != nil {
		p.conn.Close()
	}
	return err
}
