// Package workflow implements the request state machine: it decides whether a
// transition is legal right now and applies it atomically together with its
// ledger entry, then hands the result to the notifier.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/internal/metrics"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/directory"
	"github.com/viant/mediaflow/service/ledger"
	"github.com/viant/mediaflow/service/notify"
	"github.com/viant/mediaflow/tracing"
)

// DefaultRequestPrefix prefixes generated request numbers
const DefaultRequestPrefix = "RM"

// errAbort unwinds a unit of work that ended with a non-applied outcome
var errAbort = errors.New("workflow: transition aborted")

// Guard is an extra precondition evaluated first inside the unit of work. It
// may modify the request it is given; a non-nil result aborts the transition.
type Guard func(current *model.Request) *Result

// Command asks for one transition
type Command struct {
	RequestID int64
	Action    model.Action
	Actor     *model.Actor
	// Expected is the status the caller last observed; empty means the
	// transition's source status
	Expected model.Status
	Notes    string
	// ConfirmDeclaration must be set when submitting
	ConfirmDeclaration bool
	Guard              Guard
}

// Service applies transitions
type Service struct {
	store     request.Store
	ledger    *ledger.Service
	directory directory.Service
	notifier  notify.Notifier
	logger    *logrus.Entry
	prefix    string
}

// Option customises Service
type Option func(s *Service)

// WithNotifier sets the notifier invoked after applied transitions
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithDirectory enables draft prefill from the identity directory
func WithDirectory(dir directory.Service) Option {
	return func(s *Service) { s.directory = dir }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRequestPrefix sets the request number prefix
func WithRequestPrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a workflow service over store
func New(store request.Store, options ...Option) *Service {
	ret := &Service{
		store:  store,
		ledger: ledger.New(store),
		logger: logrus.NewEntry(logrus.StandardLogger()),
		prefix: DefaultRequestPrefix,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Apply attempts cmd. Workflow outcomes are reported through Result; the
// error is reserved for storage faults, in which case nothing was applied.
func (s *Service) Apply(ctx context.Context, cmd *Command) (result *Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow."+string(cmd.Action), "INTERNAL")
	span.WithAttributes(map[string]string{"requestId": fmt.Sprint(cmd.RequestID)})
	defer func() {
		if result != nil {
			span.WithAttributes(map[string]string{"outcome": string(result.Outcome)})
			metrics.Transition(string(cmd.Action), string(result.Outcome))
		}
		tracing.EndSpan(span, err)
	}()

	transition, ok := model.Lookup(cmd.Action)
	if !ok {
		return reject(OutcomeValidationFailed, cmd.Action, nil, "unknown action %q", cmd.Action), nil
	}

	var aborted *Result
	var observed, applied *model.Request
	var decision *model.Decision
	err = s.store.WithTx(ctx, cmd.RequestID, func(tx request.Tx) error {
		current := tx.Request()
		observed = current
		next := current.Clone()
		if aborted = s.check(cmd, transition, current, next); aborted != nil {
			return errAbort
		}
		now := clock.Now()
		next.Status = transition.To
		if transition.Signs {
			next.Sign(transition.Stage, now)
		}
		if err := tx.Save(next); err != nil {
			return err
		}
		var err error
		decision, err = s.ledger.Record(tx, &ledger.Entry{
			RequestID: next.ID,
			Stage:     transition.Stage,
			Label:     transition.Label,
			Actor:     cmd.Actor.ID,
			Notes:     cmd.Notes,
			DecidedAt: now,
		})
		applied = next
		return err
	})
	switch {
	case errors.Is(err, errAbort):
		if aborted.Action == "" {
			aborted.Action = cmd.Action
		}
		if aborted.Request == nil {
			aborted.Request = observed
		}
		return aborted, nil
	case errors.Is(err, dao.ErrConflict):
		current, loadErr := s.store.Load(ctx, cmd.RequestID)
		if loadErr != nil {
			current = nil
		}
		return reject(OutcomeConflict, cmd.Action, current, "request %d changed concurrently", cmd.RequestID), nil
	case err != nil:
		return nil, fmt.Errorf("failed to apply %s to request %d: %w", cmd.Action, cmd.RequestID, err)
	}

	result = &Result{Outcome: OutcomeApplied, Action: cmd.Action, Request: applied, Decision: decision}
	s.logger.WithFields(logrus.Fields{
		"request": applied.Number,
		"action":  cmd.Action,
		"actor":   cmd.Actor.ID,
		"status":  applied.Status,
	}).Info("transition applied")
	if s.notifier != nil {
		if event := notify.ForTransition(transition, applied.Clone(), decision.Notes); event != nil {
			result.Notification = s.notifier.Notify(ctx, event)
		}
	}
	return result, nil
}

// check evaluates the guard, then status, capability and content preconditions.
func (s *Service) check(cmd *Command, transition *model.Transition, current, next *model.Request) *Result {
	if cmd.Guard != nil {
		if result := cmd.Guard(next); result != nil {
			return result
		}
	}
	superseded := false
	switch {
	case transition.Action == model.ActionSubmit:
		if current.Status != model.StatusDraft {
			return reject(OutcomeForbidden, cmd.Action, current, "request %s is %s, only drafts can be submitted", current.Number, current.Status)
		}
	case cmd.Expected != "" && current.Status != cmd.Expected:
		return reject(OutcomeConflict, cmd.Action, current, "request %s is %s, expected %s", current.Number, current.Status, cmd.Expected)
	case current.Status != transition.From:
		// a sibling decision at the same stage won the race
		if superseded = transition.Superseded(current); !superseded {
			return reject(OutcomeForbidden, cmd.Action, current, "%s is not allowed from %s", cmd.Action, current.Status)
		}
	}
	if !transition.Authorized(cmd.Actor, current) {
		return reject(OutcomeForbidden, cmd.Action, current, "actor is not permitted to %s", cmd.Action)
	}
	if superseded {
		return reject(OutcomeConflict, cmd.Action, current, "request %s moved from %s to %s", current.Number, transition.From, current.Status)
	}
	if transition.Action == model.ActionSubmit {
		if !cmd.ConfirmDeclaration {
			return reject(OutcomeValidationFailed, cmd.Action, current, "the declaration must be confirmed before submitting")
		}
		if err := current.Details.Validate(); err != nil {
			return reject(OutcomeValidationFailed, cmd.Action, current, "%v", err)
		}
		if err := current.ValidateWindow(true); err != nil {
			return reject(OutcomeValidationFailed, cmd.Action, current, "%v", err)
		}
	}
	return nil
}
