package model

// Status represents the lifecycle state of a request
type Status string

const (
	StatusDraft            Status = "Draft"
	StatusSubmitted        Status = "Submitted"
	StatusOnHold           Status = "OnHold"
	StatusManagerApproved  Status = "ManagerApproved"
	StatusSecurityApproved Status = "SecurityApproved"
	StatusRejected         Status = "Rejected"
	StatusCompleted        Status = "Completed"
)

var statuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusOnHold,
	StatusManagerApproved,
	StatusSecurityApproved,
	StatusRejected,
	StatusCompleted,
}

// Statuses returns all known statuses in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

func (s Status) String() string { return string(s) }
