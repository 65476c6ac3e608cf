// Package facade implements Facade: the single external entry point that
// owns the session registry and translates commands into session actor
// lifecycles. Command handling follows the map+mutex session registry
// pattern this stack uses for its in-memory resource tables.
package facade

import (
	"context"
	"errors"
	"sync"

	"github.com/certdirectory/crawlcore/pkg/batch"
	"github.com/certdirectory/crawlcore/pkg/collaborator"
	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
	"github.com/certdirectory/crawlcore/pkg/planner"
	"github.com/certdirectory/crawlcore/pkg/retry"
	"github.com/certdirectory/crawlcore/pkg/session"
	"github.com/certdirectory/crawlcore/pkg/stage"
	"github.com/certdirectory/crawlcore/pkg/task"
	"github.com/certdirectory/crawlcore/pkg/telemetry"
)

// Errors returned directly by Facade commands (local failures only —
// downstream failures arrive on the event stream).
var (
	ErrTooManySessions = errors.New("facade: too many concurrent sessions")
	ErrUnknownSession   = errors.New("facade: unknown session id")
)

type handle struct {
	control *session.Control
	state   *session.State
	cancel  context.CancelFunc
}

// Facade is the single entry point external callers use to start, steer,
// and observe crawl sessions.
type Facade struct {
	cfg          *config.Config
	collaborators collaborator.Set
	bus          *events.Bus
	tracer       *telemetry.Provider

	mu       sync.Mutex
	sessions map[ids.SessionID]*handle
}

// New builds a Facade bound to a validated config snapshot, collaborator
// set, and event bus. Spans are created against a local TracerProvider
// with no exporter registered; call Tracer() to attach one before starting
// sessions if spans need to leave the process.
func New(cfg *config.Config, collaborators collaborator.Set, bus *events.Bus) *Facade {
	return &Facade{cfg: cfg, collaborators: collaborators, bus: bus, tracer: telemetry.NewProvider(), sessions: make(map[ids.SessionID]*handle)}
}

// Tracer returns the Facade's TracerProvider, so a caller can register a
// span processor (e.g. an OTLP exporter) before traffic starts.
func (f *Facade) Tracer() *telemetry.Provider { return f.tracer }

// StartSession validates capacity, plans the crawl from the given analyses,
// spawns a SessionActor, and returns immediately with the new session's id.
// If the plan is empty the session still registers and completes on its own
// at once, with StatusCompleted and an all-zero summary.
func (f *Facade) StartSession(ctx context.Context, site model.SiteAnalysis, db model.DbAnalysis) (ids.SessionID, error) {
	f.mu.Lock()
	if len(f.sessions) >= f.cfg.System.MaxConcurrentSessions {
		f.mu.Unlock()
		return "", ErrTooManySessions
	}
	f.mu.Unlock()

	sessionID := ids.NewSessionID()
	pub := events.NewPublisher(f.bus, sessionID, nil)

	p := planner.New(f.cfg.Planner)
	plan := p.Plan(site, db, f.cfg.Performance.BatchSizes, f.cfg.Performance.Concurrency.MaxConcurrentTasks)
	pub.Publish(events.PlanCreatedPayload{BatchCount: len(plan.Batches), EstimatedDuration: plan.EstimatedDuration})

	calc := retry.NewCalculator(uint64(len(plan.Batches)) + 1)
	exec := task.New(f.collaborators)
	stageActor := stage.New(exec, calc, pub)
	stageActor.SetTracer(f.tracer)
	batchActor := batch.New(stageActor, calc, pub)
	sessionActor := session.New(batchActor, calc, pub, f.cfg)

	runCtx, cancel := context.WithCancel(ctx)
	control := &handle{control: session.NewControl(), state: session.NewState(), cancel: cancel}

	f.mu.Lock()
	f.sessions[sessionID] = control
	f.mu.Unlock()

	go func() {
		defer f.removeSession(sessionID)
		sessionActor.Run(runCtx, sessionID, plan, control.control, control.state)
	}()

	return sessionID, nil
}

// removeSession drops sessionID from the registry once its actor has
// returned, freeing the MaxConcurrentSessions slot it held. The session's
// terminal status and summary remain readable from State held by any
// caller that fetched it before this point, but SessionStatus and
// CancelSession will report ErrUnknownSession for sessionID from here on.
func (f *Facade) removeSession(sessionID ids.SessionID) {
	f.mu.Lock()
	delete(f.sessions, sessionID)
	f.mu.Unlock()
}

// CancelSession sets the session's cancel signal while the session is
// still registered. Once its actor has returned and removeSession has
// dropped it, CancelSession reports ErrUnknownSession instead of success.
func (f *Facade) CancelSession(sessionID ids.SessionID) error {
	h, err := f.lookup(sessionID)
	if err != nil {
		return err
	}
	h.control.Cancel()
	h.cancel()
	return nil
}

// PauseSession requests the session suspend batch iteration between batches.
func (f *Facade) PauseSession(sessionID ids.SessionID) error {
	h, err := f.lookup(sessionID)
	if err != nil {
		return err
	}
	h.control.Pause()
	return nil
}

// ResumeSession requests the session continue batch iteration.
func (f *Facade) ResumeSession(sessionID ids.SessionID) error {
	h, err := f.lookup(sessionID)
	if err != nil {
		return err
	}
	h.control.Resume()
	return nil
}

// SessionStatus reports the current status and, once terminal, the
// aggregate summary or error of sessionID.
func (f *Facade) SessionStatus(sessionID ids.SessionID) (session.Status, session.Summary, error) {
	h, err := f.lookup(sessionID)
	if err != nil {
		return "", session.Summary{}, err
	}
	status, summary, runErr := h.state.Snapshot()
	return status, summary, runErr
}

// SubscribeEvents returns a new subscription to the broadcast event bus,
// filtered per filter.
func (f *Facade) SubscribeEvents(filter events.Filter) *events.Subscription {
	return f.bus.Subscribe(filter, nil)
}

// Health reports a coarse liveness summary: active session count and
// active subscriber count.
type Health struct {
	ActiveSessions     int
	ActiveSubscribers int
}

// Health returns the current liveness snapshot.
func (f *Facade) Health() Health {
	f.mu.Lock()
	n := len(f.sessions)
	f.mu.Unlock()
	return Health{ActiveSessions: n, ActiveSubscribers: f.bus.ActiveSubscribers()}
}

func (f *Facade) lookup(sessionID ids.SessionID) (*handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrUnknownSession
	}
	return h, nil
}
