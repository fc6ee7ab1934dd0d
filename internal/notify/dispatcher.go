package notify

import (
	"context"
	"log/slog"
)

// LogDispatcher writes notifications to the log instead of sending them.
// It is used when no mail server is configured.
type LogDispatcher struct{}

// Dispatch logs the payload.
func (LogDispatcher) Dispatch(ctx context.Context, p Payload) error {
	slog.InfoContext(ctx, "match notification",
		"investor_id", p.InvestorID,
		"investor_email", p.InvestorEmail,
		"property_id", p.PropertyID,
		"title", p.Title,
		"overall", p.Breakdown.Overall,
		"label", p.Breakdown.Label.String(),
	)
	return nil
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, p Payload) error

// Dispatch calls f.
func (f DispatchFunc) Dispatch(ctx context.Context, p Payload) error {
	return f(ctx, p)
}
