package mediaflow

import (
	"context"
	"sync"

	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/emailaction"
	qmemory "github.com/viant/mediaflow/service/messaging/memory"
	"github.com/viant/mediaflow/service/notify"
	"github.com/viant/mediaflow/service/workflow"
)

// Runtime exposes the request operations to the application layer. Every
// transition returns a workflow.Result; the error is reserved for storage
// faults.
type Runtime struct {
	store      request.Store
	workflow   *workflow.Service
	actions    *emailaction.Service
	dispatcher *notify.Dispatcher
	// queue and worker are set when notifications are dispatched asynchronously
	queue  *qmemory.Queue[notify.Job]
	worker *notify.Worker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// CreateDraft stores a new draft owned by actor
func (r *Runtime) CreateDraft(ctx context.Context, actor *model.Actor, draft *workflow.Draft) (*workflow.Result, error) {
	return r.workflow.CreateDraft(ctx, actor, draft)
}

// Submit sends a draft for manager review; confirmDeclaration must be set
func (r *Runtime) Submit(ctx context.Context, actor *model.Actor, id int64, confirmDeclaration bool) (*workflow.Result, error) {
	return r.workflow.Apply(ctx, &workflow.Command{
		RequestID:          id,
		Action:             model.ActionSubmit,
		Actor:              actor,
		ConfirmDeclaration: confirmDeclaration,
	})
}

// Decide applies a stage decision. expected is the status the actor last
// saw; a request that moved on since is reported as a conflict.
func (r *Runtime) Decide(ctx context.Context, actor *model.Actor, id int64, action model.Action, expected model.Status, notes string) (*workflow.Result, error) {
	return r.workflow.Apply(ctx, &workflow.Command{
		RequestID: id,
		Action:    action,
		Actor:     actor,
		Expected:  expected,
		Notes:     notes,
	})
}

// Apply runs cmd as is
func (r *Runtime) Apply(ctx context.Context, cmd *workflow.Command) (*workflow.Result, error) {
	return r.workflow.Apply(ctx, cmd)
}

// ConsumeEmailAction applies the decision carried by an email link served at
// the endpoint of stage
func (r *Runtime) ConsumeEmailAction(ctx context.Context, stage model.Stage, id int64, token, action string) (*workflow.Result, error) {
	return r.actions.Consume(ctx, stage, id, token, action)
}

// Request returns request id
func (r *Runtime) Request(ctx context.Context, id int64) (*model.Request, error) {
	return r.workflow.Get(ctx, id)
}

// History returns the decisions of request id in recording order
func (r *Runtime) History(ctx context.Context, id int64) ([]*model.Decision, error) {
	return r.workflow.History(ctx, id)
}

// Inbox returns the requests awaiting stage
func (r *Runtime) Inbox(ctx context.Context, stage model.Stage) ([]*model.Request, error) {
	return r.workflow.Inbox(ctx, stage)
}

// Mine returns the requests created by actor
func (r *Runtime) Mine(ctx context.Context, actor *model.Actor) ([]*model.Request, error) {
	return r.workflow.Mine(ctx, actor.ID)
}

// Dashboard returns the current summary
func (r *Runtime) Dashboard(ctx context.Context) (*workflow.Dashboard, error) {
	return r.workflow.Dashboard(ctx, clock.Now())
}

// Start starts the notification worker when dispatch is asynchronous
func (r *Runtime) Start(ctx context.Context) error {
	if r.worker == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = r.worker.Run(ctx)
	}(r.done)
	return nil
}

// Shutdown stops the notification worker and rejects further jobs. Jobs
// still queued are dropped.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.queue != nil {
		r.queue.Close()
	}
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Pending returns the number of queued notification jobs
func (r *Runtime) Pending() int {
	if r.queue == nil {
		return 0
	}
	return r.queue.Size()
}
