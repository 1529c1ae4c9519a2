package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"lanwatch/internal/config"
)

// Publisher is the subset of *nats.Conn used for publishing
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes each notification on <subject>.<connected|disconnected>
type NATSNotifier struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
}

// NewNATSNotifier connects to the configured NATS server
func NewNATSNotifier(cfg config.NATSConfig, log zerolog.Logger) (*NATSNotifier, error) {
	log = log.With().Str("component", "nats").Logger()

	nc, err := nats.Connect(cfg.URL,
		nats.Name("lanwatch"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	n := NewNATSNotifierWithPublisher(nc, cfg.Subject)
	n.conn = nc
	return n, nil
}

// NewNATSNotifierWithPublisher wraps an existing publisher
func NewNATSNotifierWithPublisher(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject}
}

// Name returns "nats"
func (n *NATSNotifier) Name() string {
	return "nats"
}

// Subject returns the subject for a notification
func (n *NATSNotifier) Subject(note Notification) string {
	return n.subject + "." + note.Status()
}

// Notify publishes the JSON payload
func (n *NATSNotifier) Notify(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(note.Payload())
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := n.pub.Publish(n.Subject(note), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains the connection when this notifier owns it
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
