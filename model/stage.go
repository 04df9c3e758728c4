package model

// Stage identifies the party signing off a request.
type Stage string

const (
	StageRequester Stage = "Requester"
	StageManager   Stage = "Manager"
	StageSecurity  Stage = "Security"
	StageIT        Stage = "IT"
)

// DisplayName returns the human facing name used in messages.
func (s Stage) DisplayName() string {
	switch s {
	case StageManager:
		return "Line Manager"
	case StageIT:
		return "IT Department"
	}
	return string(s)
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageRequester, StageManager, StageSecurity, StageIT:
		return true
	}
	return false
}

// Label is the decision recorded for a stage.
type Label string

const (
	LabelSubmitted Label = "Submitted"
	LabelApproved  Label = "Approved"
	LabelRejected  Label = "Rejected"
	LabelDelayed   Label = "Delayed"
	LabelCompleted Label = "Completed"
	LabelResumed   Label = "Resumed"
)

// IsValid reports whether l is a known decision label.
func (l Label) IsValid() bool {
	switch l {
	case LabelSubmitted, LabelApproved, LabelRejected, LabelDelayed, LabelCompleted, LabelResumed:
		return true
	}
	return false
}
