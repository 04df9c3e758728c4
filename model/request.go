package model

import (
	"errors"
	"time"
)

var (
	// ErrEndDateRequired is returned when a request is submitted without an end date.
	ErrEndDateRequired = errors.New("end date is required")
	// ErrEndBeforeStart is returned when the validity window is inverted.
	ErrEndBeforeStart = errors.New("end date must be on or after start date")
)

// Details captures the descriptive fields entered by the requester. They do
// not influence the workflow.
type Details struct {
	// EmploymentStatus is EMPLOYEE or CONTRACTOR
	EmploymentStatus string `json:"employmentStatus" yaml:"employmentStatus" validate:"required,oneof=EMPLOYEE CONTRACTOR"`
	Name             string `json:"name" yaml:"name" validate:"required,max=200"`
	// EmployeeNumber holds the employee number, or the employer for contractors
	EmployeeNumber  string `json:"employeeNumber,omitempty" yaml:"employeeNumber,omitempty" validate:"max=100"`
	Title           string `json:"title,omitempty" yaml:"title,omitempty"`
	OfficeExtension string `json:"officeExtension,omitempty" yaml:"officeExtension,omitempty"`
	Department      string `json:"department,omitempty" yaml:"department,omitempty"`
	Directorate     string `json:"directorate,omitempty" yaml:"directorate,omitempty"`
	LoginName       string `json:"loginName" yaml:"loginName" validate:"required"`
	MachineID       string `json:"machineId,omitempty" yaml:"machineId,omitempty"`
	Classification  string `json:"classification" yaml:"classification" validate:"required"`
	Justification   string `json:"justification" yaml:"justification" validate:"required,max=4000"`
}

// Validate checks required descriptive fields.
func (d *Details) Validate() error {
	return validateStruct(d)
}

// ActionToken is the single-use capability embedded in email action links.
// It is bound to the stage whose decision it may drive.
type ActionToken struct {
	Value     string    `json:"value"`
	Stage     Stage     `json:"stage"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired returns true when the token is no longer usable at now.
func (t *ActionToken) Expired(now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresAt)
}

// Request represents a media access request
type Request struct {
	// ID is the opaque numeric identifier assigned by the store
	ID int64 `json:"id"`

	// Number is the human-readable, immutable request number
	Number string `json:"number"`

	Status Status `json:"status"`

	Details Details `json:"details"`

	// StartDate and EndDate bound the requested access; EndDate is mandatory before submission
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`

	// Stage sign-off timestamps, each set exactly once
	RequesterSignAt *time.Time `json:"requesterSignAt,omitempty"`
	ManagerSignAt   *time.Time `json:"managerSignAt,omitempty"`
	SecuritySignAt  *time.Time `json:"securitySignAt,omitempty"`
	ITSignAt        *time.Time `json:"itSignAt,omitempty"`

	// Token is the outstanding email action capability, nil once consumed
	Token *ActionToken `json:"token,omitempty"`
}

// ValidateWindow checks the validity window; requireEnd is set on submission.
func (r *Request) ValidateWindow(requireEnd bool) error {
	if r.EndDate == nil {
		if requireEnd {
			return ErrEndDateRequired
		}
		return nil
	}
	if r.StartDate != nil && r.EndDate.Before(*r.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// SignedAt returns the sign-off timestamp of stage.
func (r *Request) SignedAt(stage Stage) *time.Time {
	switch stage {
	case StageRequester:
		return r.RequesterSignAt
	case StageManager:
		return r.ManagerSignAt
	case StageSecurity:
		return r.SecuritySignAt
	case StageIT:
		return r.ITSignAt
	}
	return nil
}

// Sign stamps stage at the given time unless it is already stamped.
func (r *Request) Sign(stage Stage, at time.Time) {
	if r.SignedAt(stage) != nil {
		return
	}
	ts := at
	switch stage {
	case StageRequester:
		r.RequesterSignAt = &ts
	case StageManager:
		r.ManagerSignAt = &ts
	case StageSecurity:
		r.SecuritySignAt = &ts
	case StageIT:
		r.ITSignAt = &ts
	}
}

// Clone returns a deep copy so callers can hold snapshots safely.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	ret := *r
	ret.StartDate = cloneTime(r.StartDate)
	ret.EndDate = cloneTime(r.EndDate)
	ret.RequesterSignAt = cloneTime(r.RequesterSignAt)
	ret.ManagerSignAt = cloneTime(r.ManagerSignAt)
	ret.SecuritySignAt = cloneTime(r.SecuritySignAt)
	ret.ITSignAt = cloneTime(r.ITSignAt)
	if r.Token != nil {
		token := *r.Token
		ret.Token = &token
	}
	return &ret
}

// Redacted returns a copy without the action token, for rendering outside the
// email channel.
func (r *Request) Redacted() *Request {
	ret := r.Clone()
	if ret != nil {
		ret.Token = nil
	}
	return ret
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ret := *t
	return &ret
}

// ActionLinks are the absolute URLs embedded in an email for one stage decision.
type ActionLinks struct {
	Approve string `json:"approve"`
	Reject  string `json:"reject"`
}
