package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransitions_Table(t *testing.T) {
	testCases := []struct {
		from   Status
		expect []Action
	}{
		{from: StatusDraft, expect: []Action{ActionSubmit}},
		{from: StatusSubmitted, expect: []Action{ActionManagerApprove, ActionManagerReject, ActionManagerDelay}},
		{from: StatusOnHold, expect: []Action{ActionManagerResume}},
		{from: StatusManagerApproved, expect: []Action{ActionSecurityApprove, ActionSecurityReject}},
		{from: StatusSecurityApproved, expect: []Action{ActionITComplete, ActionITReject}},
		{from: StatusRejected, expect: nil},
		{from: StatusCompleted, expect: nil},
	}
	for _, tc := range testCases {
		t.Run(string(tc.from), func(t *testing.T) {
			assert.EqualValues(t, tc.expect, Outgoing(tc.from))
		})
	}
}

func TestTransitions_TargetsAreKnown(t *testing.T) {
	for _, transition := range Transitions() {
		assert.True(t, transition.From.IsValid(), transition.Action)
		assert.True(t, transition.To.IsValid(), transition.Action)
		assert.True(t, transition.Stage.IsValid(), transition.Action)
		assert.True(t, transition.Label.IsValid(), transition.Action)
		assert.False(t, transition.From.IsTerminal(), transition.Action)
		assert.True(t, IsEdge(transition.From, transition.To))
	}
	assert.False(t, IsEdge(StatusDraft, StatusCompleted))
	assert.False(t, IsEdge(StatusRejected, StatusSubmitted))
}

func TestTransition_Authorized(t *testing.T) {
	request := &Request{CreatedBy: "alice"}
	submit, _ := Lookup(ActionSubmit)
	approve, _ := Lookup(ActionManagerApprove)
	complete, _ := Lookup(ActionITComplete)

	testCases := []struct {
		name       string
		transition *Transition
		actor      *Actor
		expect     bool
	}{
		{name: "owner submits", transition: submit, actor: NewActor("alice"), expect: true},
		{name: "other submits", transition: submit, actor: NewActor("bob", RoleLineManager), expect: false},
		{name: "manager approves", transition: approve, actor: NewActor("bob", RoleLineManager), expect: true},
		{name: "requester approves", transition: approve, actor: NewActor("alice", RoleRequester), expect: false},
		{name: "security completes", transition: complete, actor: NewActor("carol", RoleSecurity), expect: false},
		{name: "it completes", transition: complete, actor: NewActor("dave", RoleITAdmin), expect: true},
		{name: "anonymous", transition: approve, actor: &Actor{Roles: []Role{RoleLineManager}}, expect: false},
		{name: "nil actor", transition: approve, actor: nil, expect: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.transition.Authorized(tc.actor, request))
		})
	}
}

func TestTransition_Superseded(t *testing.T) {
	signed := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	approve, _ := Lookup(ActionManagerApprove)
	securityApprove, _ := Lookup(ActionSecurityApprove)
	itReject, _ := Lookup(ActionITReject)

	testCases := []struct {
		name       string
		transition *Transition
		request    *Request
		expect     bool
	}{
		{name: "still at source", transition: approve, request: &Request{Status: StatusSubmitted}},
		{name: "moved on hold", transition: approve, request: &Request{Status: StatusOnHold}, expect: true},
		{name: "approved by sibling", transition: approve, request: &Request{Status: StatusManagerApproved, ManagerSignAt: &signed}, expect: true},
		{name: "rejected at same stage", transition: approve, request: &Request{Status: StatusRejected, ManagerSignAt: &signed}, expect: true},
		{name: "rejected at earlier stage", transition: securityApprove, request: &Request{Status: StatusRejected, ManagerSignAt: &signed}},
		{name: "completed at same stage", transition: itReject, request: &Request{Status: StatusCompleted, ITSignAt: &signed}, expect: true},
		{name: "draft", transition: approve, request: &Request{Status: StatusDraft}},
		{name: "not yet reached", transition: securityApprove, request: &Request{Status: StatusSubmitted}},
		{name: "nil request", transition: approve},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.transition.Superseded(tc.request))
		})
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	transition, ok := Lookup(ActionSubmit)
	assert.True(t, ok)
	transition.To = StatusCompleted
	again, _ := Lookup(ActionSubmit)
	assert.Equal(t, StatusSubmitted, again.To)

	_, ok = Lookup("Escalate")
	assert.False(t, ok)
}
