package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mediaflow/model"
)

func TestForTransition(t *testing.T) {
	var testCases = []struct {
		action     model.Action
		expectKind Kind
		expectBy   model.Stage
	}{
		{action: model.ActionSubmit, expectKind: KindSubmitted},
		{action: model.ActionManagerApprove, expectKind: KindManagerApproved},
		{action: model.ActionManagerReject, expectKind: KindRejected, expectBy: model.StageManager},
		{action: model.ActionManagerDelay},
		{action: model.ActionManagerResume},
		{action: model.ActionSecurityApprove, expectKind: KindSecurityApproved},
		{action: model.ActionSecurityReject, expectKind: KindRejected, expectBy: model.StageSecurity},
		{action: model.ActionITComplete, expectKind: KindCompleted},
		{action: model.ActionITReject, expectKind: KindRejected, expectBy: model.StageIT},
	}
	for _, testCase := range testCases {
		transition, ok := model.Lookup(testCase.action)
		require.True(t, ok, testCase.action)
		event := ForTransition(transition, &model.Request{ID: 1}, "notes")
		if testCase.expectKind == "" {
			assert.Nil(t, event, testCase.action)
			continue
		}
		require.NotNil(t, event, testCase.action)
		assert.Equal(t, testCase.expectKind, event.Kind(), testCase.action)
		if rejected, ok := event.(*Rejected); ok {
			assert.Equal(t, testCase.expectBy, rejected.By, testCase.action)
			assert.Equal(t, "notes", rejected.Notes, testCase.action)
		}
	}
}

func TestJob(t *testing.T) {
	r := &model.Request{ID: 3, Number: "RM-3"}
	event, err := NewJob(NewRejected(r, model.StageManager, "no")).Event()
	require.NoError(t, err)
	rejected, ok := event.(*Rejected)
	require.True(t, ok)
	assert.Equal(t, model.StageManager, rejected.By)
	assert.Equal(t, "RM-3", rejected.Request().Number)

	_, err = (&Job{Kind: "Archived", Request: r}).Event()
	assert.Error(t, err)
	_, err = (&Job{Kind: KindCompleted}).Event()
	assert.Error(t, err)
}
