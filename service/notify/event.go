package notify

import (
	"fmt"

	"github.com/viant/mediaflow/model"
)

// Kind names an event variant
type Kind string

const (
	KindSubmitted        Kind = "Submitted"
	KindManagerApproved  Kind = "ManagerApproved"
	KindSecurityApproved Kind = "SecurityApproved"
	KindCompleted        Kind = "Completed"
	KindRejected         Kind = "Rejected"
)

// Event is a completed transition worth telling someone about. The set of
// implementations is closed: Submitted, ManagerApproved, SecurityApproved,
// Completed and Rejected.
type Event interface {
	Kind() Kind
	// Request returns the post-transition snapshot
	Request() *model.Request
	event()
}

type snapshot struct {
	request *model.Request
}

func (s snapshot) Request() *model.Request { return s.request }
func (s snapshot) event()                  {}

// Submitted is raised when a requester submits a draft
type Submitted struct{ snapshot }

// ManagerApproved is raised when the line manager approves
type ManagerApproved struct{ snapshot }

// SecurityApproved is raised when security approves
type SecurityApproved struct{ snapshot }

// Completed is raised when IT completes the request
type Completed struct{ snapshot }

// Rejected is raised when any stage rejects the request
type Rejected struct {
	snapshot
	By    model.Stage
	Notes string
}

func (Submitted) Kind() Kind        { return KindSubmitted }
func (ManagerApproved) Kind() Kind  { return KindManagerApproved }
func (SecurityApproved) Kind() Kind { return KindSecurityApproved }
func (Completed) Kind() Kind        { return KindCompleted }
func (Rejected) Kind() Kind         { return KindRejected }

// NewSubmitted creates a Submitted event
func NewSubmitted(r *model.Request) *Submitted { return &Submitted{snapshot{r}} }

// NewManagerApproved creates a ManagerApproved event
func NewManagerApproved(r *model.Request) *ManagerApproved { return &ManagerApproved{snapshot{r}} }

// NewSecurityApproved creates a SecurityApproved event
func NewSecurityApproved(r *model.Request) *SecurityApproved {
	return &SecurityApproved{snapshot{r}}
}

// NewCompleted creates a Completed event
func NewCompleted(r *model.Request) *Completed { return &Completed{snapshot{r}} }

// NewRejected creates a Rejected event
func NewRejected(r *model.Request, by model.Stage, notes string) *Rejected {
	return &Rejected{snapshot: snapshot{r}, By: by, Notes: notes}
}

// ForTransition maps an applied transition onto its event; transitions that
// notify nobody (delay, resume) yield nil.
func ForTransition(transition *model.Transition, r *model.Request, notes string) Event {
	if transition.Rejects() {
		return NewRejected(r, transition.Stage, notes)
	}
	switch transition.To {
	case model.StatusSubmitted:
		if transition.Action == model.ActionSubmit {
			return NewSubmitted(r)
		}
	case model.StatusManagerApproved:
		return NewManagerApproved(r)
	case model.StatusSecurityApproved:
		return NewSecurityApproved(r)
	case model.StatusCompleted:
		return NewCompleted(r)
	}
	return nil
}

// Job is the serialisable form of an event used by the async worker
type Job struct {
	Kind    Kind           `json:"kind"`
	Request *model.Request `json:"request"`
	By      model.Stage    `json:"by,omitempty"`
	Notes   string         `json:"notes,omitempty"`
}

// NewJob converts event into a Job
func NewJob(event Event) *Job {
	ret := &Job{Kind: event.Kind(), Request: event.Request().Clone()}
	if rejected, ok := event.(*Rejected); ok {
		ret.By = rejected.By
		ret.Notes = rejected.Notes
	}
	return ret
}

// Event converts the job back into its event
func (j *Job) Event() (Event, error) {
	if j.Request == nil {
		return nil, fmt.Errorf("notification job %s has no request", j.Kind)
	}
	switch j.Kind {
	case KindSubmitted:
		return NewSubmitted(j.Request), nil
	case KindManagerApproved:
		return NewManagerApproved(j.Request), nil
	case KindSecurityApproved:
		return NewSecurityApproved(j.Request), nil
	case KindCompleted:
		return NewCompleted(j.Request), nil
	case KindRejected:
		return NewRejected(j.Request, j.By, j.Notes), nil
	}
	return nil, fmt.Errorf("unknown notification kind %q", j.Kind)
}
