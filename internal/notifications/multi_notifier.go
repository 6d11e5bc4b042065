package notifications

import (
	"context"
	"errors"
)

// MultiNotifier delivers to every target and joins their errors.
type MultiNotifier struct {
	targets []Notifier
}

func NewMultiNotifier(targets ...Notifier) *MultiNotifier {
	out := make([]Notifier, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			out = append(out, t)
		}
	}
	return &MultiNotifier{targets: out}
}

func (m *MultiNotifier) Notify(ctx context.Context, in Notification) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Notify(ctx, in); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
