// Package audit records who evaluated what, when, and with what result.
// Delivery is best effort: decisions never block or fail on audit problems.
package audit

import (
	"context"
	"time"

	"github.com/goliatone/go-accessgate/gate"
)

// Action names the decision point that produced an event.
type Action string

const (
	ActionAuthorize       Action = "authorize"
	ActionEvaluateFlag    Action = "evaluate_flag"
	ActionPermitOperation Action = "permit_operation"
	ActionUpsertFlag      Action = "upsert_flag"
	ActionDeleteFlag      Action = "delete_flag"
	ActionUpsertOverride  Action = "upsert_override"
	ActionDeleteOverride  Action = "delete_override"
	ActionSetRole         Action = "set_role"
)

// Event is a single audit record.
type Event struct {
	Actor     gate.ActorRef
	Action    Action
	Target    string
	Decision  gate.Decision
	Timestamp time.Time
	Context   map[string]any
}

// Recorder receives audit events.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// RecorderFunc wraps a function as a Recorder.
type RecorderFunc func(context.Context, Event)

// Record implements Recorder.
func (fn RecorderFunc) Record(ctx context.Context, event Event) {
	if fn == nil {
		return
	}
	fn(ctx, event)
}

// NoopRecorder drops all events.
type NoopRecorder struct{}

// Record implements Recorder.
func (NoopRecorder) Record(context.Context, Event) {}

// Stamp fills a zero timestamp with the current time.
func Stamp(event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}

var _ Recorder = (RecorderFunc)(nil)
var _ Recorder = NoopRecorder{}
