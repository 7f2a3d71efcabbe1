package enforce

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/httpacl/httpacl/pkg/acl"
)

// DecisionEvent is one audit record for a denial.
type DecisionEvent struct {
	ID             string        `json:"id"`
	Timestamp      time.Time     `json:"timestamp"`
	Dimension      acl.Dimension `json:"dimension"`
	Value          string        `json:"value"`
	Classification acl.Kind      `json:"classification"`
	Reason         string        `json:"reason,omitempty"`
}

// Emitter receives audit events. Emit must not block request processing for
// long; slow sinks should buffer internally.
type Emitter interface {
	Emit(ctx context.Context, ev DecisionEvent)
}

func newDecisionEvent(dim acl.Dimension, value string, cls acl.Classification) DecisionEvent {
	return DecisionEvent{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Dimension:      dim,
		Value:          value,
		Classification: cls.Kind,
		Reason:         cls.Reason,
	}
}

// LogEmitter writes audit events to a structured logger.
type LogEmitter struct {
	Log *slog.Logger
}

func (e *LogEmitter) Emit(ctx context.Context, ev DecisionEvent) {
	log := e.Log
	if log == nil {
		log = slog.Default()
	}
	log.LogAttrs(ctx, slog.LevelInfo, "acl decision",
		slog.String("event_id", ev.ID),
		slog.String("dimension", string(ev.Dimension)),
		slog.String("value", ev.Value),
		slog.String("classification", string(ev.Classification)),
	)
}
