package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "clubevents"

// NATSNotifier publishes each notification on "<prefix>.<kind>", e.g. clubevents.event.postponed.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSNotifier(url, clientName string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSNotifier{conn: conn, prefix: DefaultSubjectPrefix}, nil
}

func (n *NATSNotifier) Subject(k Kind) string {
	return n.prefix + "." + string(k)
}

func (n *NATSNotifier) Notify(ctx context.Context, in Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	subject := n.Subject(in.Kind)
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	// Drain flushes pending publishes before closing
	return n.conn.Drain()
}
