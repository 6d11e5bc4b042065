package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrSimulatedOutage = errors.New("provider down (simulated)")

type LogNotifierConfig struct {
	// Optional: simulate slow provider
	Delay time.Duration
	// Optional: simulate provider outage
	Fail bool
}

// LogNotifier writes every notification to the structured log.
type LogNotifier struct {
	log *slog.Logger
	cfg LogNotifierConfig
}

func NewLogNotifier(log *slog.Logger, cfg LogNotifierConfig) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, cfg: cfg}
}

func (n *LogNotifier) Notify(ctx context.Context, in Notification) error {
	if n.cfg.Delay > 0 {
		select {
		case <-time.After(n.cfg.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.cfg.Fail {
		return ErrSimulatedOutage
	}

	attrs := []any{
		"kind", string(in.Kind),
		"event_id", in.EventID,
		"status", in.Status,
	}
	if in.PreviousStatus != "" {
		attrs = append(attrs, "previous_status", in.PreviousStatus)
	}
	if in.RegistrationID != "" {
		attrs = append(attrs, "registration_id", in.RegistrationID, "email", in.Email)
	}
	if in.Message != "" {
		attrs = append(attrs, "message", in.Message)
	}

	n.log.InfoContext(ctx, "notification", attrs...)
	return nil
}
