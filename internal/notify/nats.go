package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSNotifier publishes update events as JSON messages to a NATS subject so
// other systems (dashboards, chat bridges) can react to them.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSNotifier connects to NATS and returns a notifier publishing to subject.
func NewNATSNotifier(url, subject string, logger *slog.Logger) (*NATSNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("NATS subject is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("plugwatch"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSNotifier{conn: conn, subject: subject, logger: logger}, nil
}

// ComponentUpdated publishes the event. Release notes are rendered to HTML
// before publishing so subscribers need no markdown tooling.
func (n *NATSNotifier) ComponentUpdated(_ context.Context, ev Event) error {
	ev.NotesHTML = RenderNotes(ev.Notes)
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal update event: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish update event: %w", err)
	}
	n.logger.Debug("Published update event", "subject", n.subject, "component", ev.Component)
	return nil
}

// CycleCompleted publishes the cycle summary on "<subject>.cycle".
func (n *NATSNotifier) CycleCompleted(_ context.Context, report CycleReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal cycle report: %w", err)
	}
	if err := n.conn.Publish(n.subject+".cycle", payload); err != nil {
		return fmt.Errorf("publish cycle report: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
}
