package model

// Action names a transition an actor can request.
type Action string

const (
	ActionSubmit          Action = "Submit"
	ActionManagerApprove  Action = "ManagerApprove"
	ActionManagerReject   Action = "ManagerReject"
	ActionManagerDelay    Action = "ManagerDelay"
	ActionManagerResume   Action = "ManagerResume"
	ActionSecurityApprove Action = "SecurityApprove"
	ActionSecurityReject  Action = "SecurityReject"
	ActionITComplete      Action = "ITComplete"
	ActionITReject        Action = "ITReject"
)

// Transition is one edge of the approval graph.
type Transition struct {
	Action Action
	From   Status
	To     Status

	// Role is required from the actor; empty for owner-only transitions
	Role Role

	// OwnerOnly restricts the transition to the request creator
	OwnerOnly bool

	// Stage and Label describe the ledger entry the transition appends
	Stage Stage
	Label Label

	// Signs marks a stage terminal decision that stamps the stage timestamp
	Signs bool
}

var transitions = []*Transition{
	{Action: ActionSubmit, From: StatusDraft, To: StatusSubmitted, OwnerOnly: true, Stage: StageRequester, Label: LabelSubmitted, Signs: true},
	{Action: ActionManagerApprove, From: StatusSubmitted, To: StatusManagerApproved, Role: RoleLineManager, Stage: StageManager, Label: LabelApproved, Signs: true},
	{Action: ActionManagerReject, From: StatusSubmitted, To: StatusRejected, Role: RoleLineManager, Stage: StageManager, Label: LabelRejected, Signs: true},
	{Action: ActionManagerDelay, From: StatusSubmitted, To: StatusOnHold, Role: RoleLineManager, Stage: StageManager, Label: LabelDelayed},
	{Action: ActionManagerResume, From: StatusOnHold, To: StatusSubmitted, Role: RoleLineManager, Stage: StageManager, Label: LabelResumed},
	{Action: ActionSecurityApprove, From: StatusManagerApproved, To: StatusSecurityApproved, Role: RoleSecurity, Stage: StageSecurity, Label: LabelApproved, Signs: true},
	{Action: ActionSecurityReject, From: StatusManagerApproved, To: StatusRejected, Role: RoleSecurity, Stage: StageSecurity, Label: LabelRejected, Signs: true},
	{Action: ActionITComplete, From: StatusSecurityApproved, To: StatusCompleted, Role: RoleITAdmin, Stage: StageIT, Label: LabelCompleted, Signs: true},
	{Action: ActionITReject, From: StatusSecurityApproved, To: StatusRejected, Role: RoleITAdmin, Stage: StageIT, Label: LabelRejected, Signs: true},
}

// Lookup returns the transition for action.
func Lookup(action Action) (*Transition, bool) {
	for _, candidate := range transitions {
		if candidate.Action == action {
			ret := *candidate
			return &ret, true
		}
	}
	return nil, false
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	ret := make([]Transition, 0, len(transitions))
	for _, candidate := range transitions {
		ret = append(ret, *candidate)
	}
	return ret
}

// Outgoing lists actions legal from status.
func Outgoing(from Status) []Action {
	var ret []Action
	for _, candidate := range transitions {
		if candidate.From == from {
			ret = append(ret, candidate.Action)
		}
	}
	return ret
}

// IsEdge reports whether from -> to is an edge of the table.
func IsEdge(from, to Status) bool {
	for _, candidate := range transitions {
		if candidate.From == from && candidate.To == to {
			return true
		}
	}
	return false
}

// Authorized checks the actor capability for transition on request.
func (t *Transition) Authorized(actor *Actor, request *Request) bool {
	if actor == nil || actor.ID == "" {
		return false
	}
	if t.OwnerOnly {
		return request != nil && request.CreatedBy == actor.ID
	}
	return actor.Has(t.Role)
}

// Superseded reports whether request left t.From through another decision at
// t's stage, so a caller acting on the earlier read lost a race rather than
// asking for an illegal transition.
func (t *Transition) Superseded(request *Request) bool {
	if request == nil || request.Status == t.From || !IsEdge(t.From, request.Status) {
		return false
	}
	if request.Status.IsTerminal() {
		return request.SignedAt(t.Stage) != nil
	}
	return true
}

// Rejects returns true when the transition ends the request as rejected.
func (t *Transition) Rejects() bool {
	return t.To == StatusRejected
}
