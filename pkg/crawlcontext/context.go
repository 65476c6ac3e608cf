// Package crawlcontext bundles the per-invocation state of the crawl
// actors: correlation IDs, a collaborator set, the cancellation signal,
// and the event publisher. StageActor builds one per stage invocation;
// TaskExecutor itself receives only a context.Context, stage and item. Modeled on agent.ExecutionContext, which bundles a
// session/stage/execution identity with its LLM client, tool executor, and
// event publisher so call sites never thread five separate parameters.
package crawlcontext

import (
	"context"

	"github.com/certdirectory/crawlcore/pkg/collaborator"
	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
)

// Context is the per-invocation bundle StageActor uses to check for
// session cancellation and derive its stage context.
type Context struct {
	SessionID ids.SessionID
	BatchID   ids.BatchID
	StageID   ids.StageID
	TaskID    ids.TaskID
	Stage     model.StageName

	Collaborators collaborator.Set
	Publisher     *events.Publisher

	// Cancel is closed when the owning session is cancelled. Every
	// suspension point inside a TaskExecutor must race this alongside its
	// own context.Context deadline.
	Cancel <-chan struct{}
}

// Cancelled reports whether the session-level cancel signal has fired.
func (c Context) Cancelled() bool {
	select {
	case <-c.Cancel:
		return true
	default:
		return false
	}
}

// WithTimeout derives a context.Context bounded by both the caller's ctx
// and this Context's cancellation signal, so a single select races every
// suspension point against timeout, parent cancellation, and session
// cancellation at once.
func (c Context) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := make(chan struct{})
	go func() {
		select {
		case <-c.Cancel:
			cancel()
		case <-ctx.Done():
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}
