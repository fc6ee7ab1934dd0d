// Package events consumes match trigger events from Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/metrics"
	"github.com/evcraddock/matchmaker/internal/notify"
)

// Event types.
const (
	TypeListingChanged  = "listing.changed"
	TypeInvestorChanged = "investor.changed"
)

// Consumer results recorded in metrics.
const (
	resultOK       = "ok"
	resultInvalid  = "invalid"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Event says that a listing or investor was created or updated.
type Event struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Decode parses and checks an event payload.
func Decode(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if e.ID == "" {
		return Event{}, errors.New("event has no id")
	}
	switch e.Type {
	case TypeListingChanged, TypeInvestorChanged:
	default:
		return Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}

// Triggers runs notifications for changed records.
type Triggers interface {
	ListingChanged(ctx context.Context, id string) (notify.Summary, error)
	InvestorChanged(ctx context.Context, id string) (notify.Summary, error)
}

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka consumer settings.
type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Group   string   `yaml:"group"`
}

// Enabled reports whether a consumer should run.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// NewReader creates a consumer-group reader for the trigger topic.
func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.Group,
		MinBytes:       1,
		MaxBytes:       1e6,
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})
}

// Consumer feeds trigger events to the notification workflow.
type Consumer struct {
	reader     Reader
	triggers   Triggers
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewConsumer creates a consumer.
func NewConsumer(reader Reader, triggers Triggers) *Consumer {
	return &Consumer{
		reader:     reader,
		triggers:   triggers,
		backoff:    time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run consumes until ctx is cancelled or the reader is closed, then closes
// the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			slog.Warn("closing kafka reader", "error", err)
		}
	}()

	slog.InfoContext(ctx, "trigger consumer started")
	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "trigger consumer stopping")
			return nil
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				slog.InfoContext(ctx, "trigger consumer stopping")
				return nil
			}
			slog.ErrorContext(ctx, "failed to fetch message", "error", err)
			if !c.wait(ctx, c.backoff) {
				return nil
			}
			continue
		}

		c.process(ctx, msg)
	}
}

// process handles one message and commits it. A handler failure is retried
// in place with exponential backoff: group offsets are cumulative, so
// committing a later message would skip this one for good. Malformed events
// and events for deleted records are committed and dropped. process returns
// without committing only when ctx is cancelled.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	logger := slog.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	event, err := Decode(msg.Value)
	if err != nil {
		metrics.TriggerEvents.WithLabelValues("unknown", resultInvalid).Inc()
		logger.WarnContext(ctx, "dropping malformed event", "error", err)
		c.commit(ctx, logger, msg)
		return
	}

	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		summary, err := c.Handle(ctx, event)
		switch {
		case errors.Is(err, listing.ErrNotFound), errors.Is(err, investor.ErrNotFound):
			metrics.TriggerEvents.WithLabelValues(event.Type, resultNotFound).Inc()
			logger.InfoContext(ctx, "event for missing record", "type", event.Type, "id", event.ID)
		case err != nil:
			metrics.TriggerEvents.WithLabelValues(event.Type, resultError).Inc()
			logger.ErrorContext(ctx, "failed to process event, retrying",
				"type", event.Type,
				"id", event.ID,
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
			if !c.wait(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		default:
			metrics.TriggerEvents.WithLabelValues(event.Type, resultOK).Inc()
			logger.InfoContext(ctx, "processed event",
				"type", event.Type,
				"id", event.ID,
				"qualified", summary.Qualified,
				"sent", summary.Sent,
				"failed", summary.Failed,
			)
		}

		c.commit(ctx, logger, msg)
		return
	}
}

// wait sleeps for d and reports false if ctx ends first.
func (c *Consumer) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) commit(ctx context.Context, logger *slog.Logger, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "failed to commit message", "error", err)
	}
}

// Handle routes an event to its trigger.
func (c *Consumer) Handle(ctx context.Context, e Event) (notify.Summary, error) {
	switch e.Type {
	case TypeListingChanged:
		return c.triggers.ListingChanged(ctx, e.ID)
	case TypeInvestorChanged:
		return c.triggers.InvestorChanged(ctx, e.ID)
	default:
		return notify.Summary{}, fmt.Errorf("unknown event type %q", e.Type)
	}
}
