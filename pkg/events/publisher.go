package events

import (
	"time"

	"github.com/certdirectory/crawlcore/pkg/ids"
)

// Publisher stamps a fixed SessionID/BatchID/StageID/TaskID prefix onto
// every event it emits and forwards to a Bus, so actors never rebuild the
// envelope by hand at each call site — one Publisher per actor, narrowed
// by With* as work descends the tree.
type Publisher struct {
	bus  *Bus
	env  Envelope
	nowFn func() time.Time
}

// NewPublisher builds a root Publisher for a session.
func NewPublisher(bus *Bus, sessionID ids.SessionID, now func() time.Time) *Publisher {
	if now == nil {
		now = time.Now
	}
	return &Publisher{bus: bus, env: Envelope{SessionID: sessionID}, nowFn: now}
}

// WithBatch returns a Publisher narrowed to a batch.
func (p *Publisher) WithBatch(batchID ids.BatchID) *Publisher {
	env := p.env
	env.BatchID = batchID
	return &Publisher{bus: p.bus, env: env, nowFn: p.nowFn}
}

// WithStage returns a Publisher narrowed to a stage.
func (p *Publisher) WithStage(stageID ids.StageID) *Publisher {
	env := p.env
	env.StageID = stageID
	return &Publisher{bus: p.bus, env: env, nowFn: p.nowFn}
}

// WithTask returns a Publisher narrowed to a task.
func (p *Publisher) WithTask(taskID ids.TaskID) *Publisher {
	env := p.env
	env.TaskID = taskID
	return &Publisher{bus: p.bus, env: env, nowFn: p.nowFn}
}

// Publish emits payload under this Publisher's current envelope, stamped
// with the current time.
func (p *Publisher) Publish(payload Payload) {
	env := p.env
	env.Timestamp = p.nowFn()
	p.bus.Publish(AppEvent{Envelope: env, Payload: payload})
}

// SessionID, BatchID, StageID, and TaskID expose the correlation ids this
// Publisher stamps onto every event, so callers that need the same ids for
// another correlated concern (tracing spans) don't have to thread them
// separately.
func (p *Publisher) SessionID() ids.SessionID { return p.env.SessionID }
func (p *Publisher) BatchID() ids.BatchID     { return p.env.BatchID }
func (p *Publisher) StageID() ids.StageID     { return p.env.StageID }
func (p *Publisher) TaskID() ids.TaskID       { return p.env.TaskID }
