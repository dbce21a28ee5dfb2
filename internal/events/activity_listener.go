package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-timeline/internal/observability"
)

const queueGroup = "activity-timeline"

// ActivityLogged is the message published whenever an activity row is written.
type ActivityLogged struct {
	ID          uint   `json:"id"`
	SubjectType string `json:"subject_type"`
	SubjectID   uint   `json:"subject_id"`
	Event       string `json:"event"`
}

// Invalidator drops cached timelines.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ActivityListener invalidates the timeline cache when activities are logged.
type ActivityListener struct {
	conn        *nats.Conn
	subject     string
	invalidator Invalidator
	logger      zerolog.Logger
	timeout     time.Duration
}

// NewActivityListener wires a listener for subject on conn.
func NewActivityListener(conn *nats.Conn, subject string, invalidator Invalidator, logger zerolog.Logger) *ActivityListener {
	return &ActivityListener{
		conn:        conn,
		subject:     subject,
		invalidator: invalidator,
		logger:      logger.With().Str("component", "activity_listener").Logger(),
		timeout:     2 * time.Second,
	}
}

// Start subscribes in the listener queue group and drains the subscription
// once ctx is cancelled.
func (l *ActivityListener) Start(ctx context.Context) error {
	if l.conn == nil || l.subject == "" {
		return fmt.Errorf("activity listener requires a nats connection and subject")
	}

	sub, err := l.conn.QueueSubscribe(l.subject, queueGroup, func(msg *nats.Msg) {
		l.Handle(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", l.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			l.logger.Warn().Err(err).Msg("failed to drain activity subscription")
		}
	}()

	l.logger.Info().Str("subject", l.subject).Msg("listening for logged activities")
	return nil
}

// Handle processes one message. Malformed payloads still invalidate since the
// publisher wrote something to the log.
func (l *ActivityListener) Handle(ctx context.Context, payload []byte) {
	var event ActivityLogged
	if err := json.Unmarshal(payload, &event); err != nil {
		l.logger.Warn().Err(err).Msg("malformed activity event")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.invalidator.Invalidate(ctx); err != nil {
		observability.Invalidations().WithLabelValues("error").Inc()
		l.logger.Error().Err(err).Uint("activity_id", event.ID).Msg("failed to invalidate timeline cache")
		return
	}

	observability.Invalidations().WithLabelValues("ok").Inc()
	l.logger.Debug().
		Uint("activity_id", event.ID).
		Str("subject_type", event.SubjectType).
		Uint("subject_id", event.SubjectID).
		Msg("timeline cache invalidated")
}
