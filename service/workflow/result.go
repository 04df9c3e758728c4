package workflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/notify"
)

// Outcome classifies the result of a transition attempt
type Outcome string

const (
	// OutcomeApplied means the transition is durable
	OutcomeApplied Outcome = "Applied"
	// OutcomeConflict means the status changed underneath the caller
	OutcomeConflict Outcome = "Conflict"
	// OutcomeForbidden means the actor or current status does not permit the action
	OutcomeForbidden Outcome = "Forbidden"
	// OutcomeValidationFailed means the request content is not acceptable
	OutcomeValidationFailed Outcome = "ValidationFailed"
	// OutcomeInvalidToken means the email action token is missing, expired or already used
	OutcomeInvalidToken Outcome = "InvalidToken"
)

var (
	ErrConflict     = errors.New("workflow: conflict")
	ErrForbidden    = errors.New("workflow: forbidden")
	ErrValidation   = errors.New("workflow: validation failed")
	ErrInvalidToken = errors.New("workflow: invalid token")
)

// Result reports what happened to a transition attempt. Infrastructure
// faults are returned as errors alongside a nil Result instead.
type Result struct {
	Outcome Outcome      `json:"outcome"`
	Action  model.Action `json:"action,omitempty"`
	// Request is the post-transition snapshot when applied, the current one otherwise
	Request  *model.Request  `json:"request,omitempty"`
	Decision *model.Decision `json:"decision,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	// Notification is the dispatch report of an applied transition, nil when nobody is notified
	Notification *notify.Report `json:"notification,omitempty"`
}

// MarshalJSON renders the result with the request token removed
func (r *Result) MarshalJSON() ([]byte, error) {
	type result Result
	ret := result(*r)
	ret.Request = r.Request.Redacted()
	return json.Marshal(&ret)
}

// Applied returns true when the transition is durable
func (r *Result) Applied() bool {
	return r != nil && r.Outcome == OutcomeApplied
}

// Status returns the request status carried by the result
func (r *Result) Status() model.Status {
	if r == nil || r.Request == nil {
		return ""
	}
	return r.Request.Status
}

// Err maps a non-applied outcome onto its sentinel error
func (r *Result) Err() error {
	if r == nil || r.Outcome == OutcomeApplied {
		return nil
	}
	var sentinel error
	switch r.Outcome {
	case OutcomeConflict:
		sentinel = ErrConflict
	case OutcomeForbidden:
		sentinel = ErrForbidden
	case OutcomeValidationFailed:
		sentinel = ErrValidation
	case OutcomeInvalidToken:
		sentinel = ErrInvalidToken
	default:
		return fmt.Errorf("workflow: unknown outcome %q", r.Outcome)
	}
	if r.Reason == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, r.Reason)
}

func reject(outcome Outcome, action model.Action, current *model.Request, format string, args ...interface{}) *Result {
	return &Result{Outcome: outcome, Action: action, Request: current, Reason: fmt.Sprintf(format, args...)}
}
