// Package events implements the typed broadcast bus the actor tree
// publishes lifecycle events to and a dashboard (or a test) subscribes to.
// The envelope/payload split and per-event-kind payload structs mirror
// events.SessionStatusPayload / events.StageStatusPayload; the broadcast
// mechanics (snapshot-then-send-outside-lock, per-subscriber bounded
// queue) mirror events.ConnectionManager, adapted from a WebSocket/Postgres
// LISTEN transport to a plain in-process channel bus, since no dashboard
// process exists inside this core's boundary.
package events

import (
	"time"

	"github.com/certdirectory/crawlcore/pkg/ids"
)

// Kind discriminates the payload carried by an AppEvent.
type Kind string

const (
	KindSessionStarted   Kind = "session.started"
	KindSessionCompleted Kind = "session.completed"
	KindSessionCancelled Kind = "session.cancelled"
	KindSessionTimeout   Kind = "session.timeout"

	KindPlanCreated Kind = "plan.created"

	KindBatchStarted       Kind = "batch.started"
	KindBatchCompleted     Kind = "batch.completed"
	KindBatchFailed        Kind = "batch.failed"
	KindBatchConfigChanged Kind = "batch.config_changed"

	KindStageStarted  Kind = "stage.started"
	KindStageProgress Kind = "stage.progress"
	KindStageCompleted Kind = "stage.completed"
	KindStageFailed   Kind = "stage.failed"

	KindTaskStarted   Kind = "task.started"
	KindTaskCompleted Kind = "task.completed"
	KindTaskFailed    Kind = "task.failed"
	KindTaskRetrying  Kind = "task.retrying"
	KindTaskCancelled Kind = "task.cancelled"

	KindAggregatedState       Kind = "metrics.aggregated_state"
	KindOptimizationSuggested Kind = "metrics.optimization_suggested"
)

// Envelope carries the correlation identifiers every AppEvent needs,
// regardless of payload. BatchID, StageID, and TaskID are empty when not
// applicable to the event's layer.
type Envelope struct {
	SessionID ids.SessionID
	BatchID   ids.BatchID
	StageID   ids.StageID
	TaskID    ids.TaskID
	Timestamp time.Time
}

// Payload is implemented by every concrete event payload type. Kind
// returns the discriminator so subscribers can filter or switch without a
// type assertion failing silently.
type Payload interface {
	Kind() Kind
}

// AppEvent is one event on the bus: a correlation envelope plus a typed
// payload.
type AppEvent struct {
	Envelope
	Payload Payload
}

// --- Session-level payloads ---

type SessionSummary struct {
	ItemsSaved      int
	ItemsFailed     int
	BatchesSucceeded int
	BatchesFailed   int
	DurationMs      int64
}

type SessionStartedPayload struct{}

func (SessionStartedPayload) Kind() Kind { return KindSessionStarted }

type SessionCompletedPayload struct {
	Summary SessionSummary
}

func (SessionCompletedPayload) Kind() Kind { return KindSessionCompleted }

type SessionCancelledPayload struct {
	Reason string
}

func (SessionCancelledPayload) Kind() Kind { return KindSessionCancelled }

type SessionTimeoutPayload struct{}

func (SessionTimeoutPayload) Kind() Kind { return KindSessionTimeout }

// --- Plan ---

type PlanCreatedPayload struct {
	BatchCount        int
	EstimatedDuration time.Duration
}

func (PlanCreatedPayload) Kind() Kind { return KindPlanCreated }

// --- Batch-level payloads ---

type BatchResultSummary struct {
	ItemsSaved  int
	ItemsFailed int
}

type BatchStartedPayload struct {
	PageCount int
}

func (BatchStartedPayload) Kind() Kind { return KindBatchStarted }

type BatchCompletedPayload struct {
	Result BatchResultSummary
}

func (BatchCompletedPayload) Kind() Kind { return KindBatchCompleted }

type BatchFailedPayload struct {
	Error string
	Final bool
}

func (BatchFailedPayload) Kind() Kind { return KindBatchFailed }

type BatchConfigChangedPayload struct {
	NewSize int
	Reason  string
}

func (BatchConfigChangedPayload) Kind() Kind { return KindBatchConfigChanged }

// --- Stage-level payloads ---

type StageStartedPayload struct{}

func (StageStartedPayload) Kind() Kind { return KindStageStarted }

type StageProgressPayload struct {
	Done  int
	Total int
}

func (StageProgressPayload) Kind() Kind { return KindStageProgress }

type StageCompletedPayload struct{}

func (StageCompletedPayload) Kind() Kind { return KindStageCompleted }

type StageFailedPayload struct {
	Error string
}

func (StageFailedPayload) Kind() Kind { return KindStageFailed }

// --- Task-level payloads ---

type TaskStartedPayload struct{}

func (TaskStartedPayload) Kind() Kind { return KindTaskStarted }

type TaskCompletedPayload struct{}

func (TaskCompletedPayload) Kind() Kind { return KindTaskCompleted }

type TaskFailedPayload struct {
	Error string
}

func (TaskFailedPayload) Kind() Kind { return KindTaskFailed }

type TaskRetryingPayload struct {
	Attempt int
	DelayMs int64
	Error   string
}

func (TaskRetryingPayload) Kind() Kind { return KindTaskRetrying }

type TaskCancelledPayload struct{}

func (TaskCancelledPayload) Kind() Kind { return KindTaskCancelled }

// --- Metrics payloads ---

type AggregatedStatePayload struct {
	Throughput float64
	ErrorRate  float64
	ETA        time.Duration
	Counters   map[string]int
}

func (AggregatedStatePayload) Kind() Kind { return KindAggregatedState }

type OptimizationSuggestedPayload struct {
	Category       string
	Recommendation string
}

func (OptimizationSuggestedPayload) Kind() Kind { return KindOptimizationSuggested }
