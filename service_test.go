package mediaflow_test

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mediaflow"
	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/emailaction"
	mmemory "github.com/viant/mediaflow/service/mail/memory"
	qmemory "github.com/viant/mediaflow/service/messaging/memory"
	"github.com/viant/mediaflow/service/workflow"
)

var (
	now   = time.Date(2025, 11, 2, 17, 11, 47, 0, time.UTC)
	alice = model.NewActor("alice", model.RoleRequester)
	bob   = model.NewActor("bob", model.RoleLineManager)
	carol = model.NewActor("carol", model.RoleSecurity)
	dave  = model.NewActor("dave", model.RoleITAdmin)
)

func newService(t *testing.T, mutate func(c *mediaflow.Config)) (*mediaflow.Service, *mmemory.Sender) {
	t.Helper()
	t.Cleanup(clock.Freeze(now))
	config := mediaflow.DefaultConfig()
	config.Notify.BaseURL = "https://portal.test"
	if mutate != nil {
		mutate(config)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	srv, err := mediaflow.New(context.Background(), mediaflow.WithConfig(config), mediaflow.WithLogger(logrus.NewEntry(logger)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })
	sender, ok := srv.Sender().(*mmemory.Sender)
	require.True(t, ok)
	return srv, sender
}

func submitted(t *testing.T, rt *mediaflow.Runtime) *model.Request {
	t.Helper()
	result := submit(t, rt)
	require.True(t, result.Applied(), result.Reason)
	return result.Request
}

func submit(t *testing.T, rt *mediaflow.Runtime) *workflow.Result {
	t.Helper()
	ctx := context.Background()
	startDate := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	draft, err := rt.CreateDraft(ctx, alice, &workflow.Draft{
		Details: model.Details{
			EmploymentStatus: "EMPLOYEE",
			EmployeeNumber:   "E-1001",
			Title:            "Analyst",
			Classification:   "OFFICIAL",
			Justification:    "quarterly audit export",
		},
		StartDate: &startDate,
		EndDate:   &endDate,
	})
	require.NoError(t, err)
	require.True(t, draft.Applied(), draft.Reason)
	result, err := rt.Submit(ctx, alice, draft.Request.ID, true)
	require.NoError(t, err)
	return result
}

func TestService_ManagerApproval(t *testing.T) {
	testCases := []struct {
		description string
		vendor      request.Vendor
	}{
		{description: "memory store", vendor: request.VendorMemory},
		{description: "fs store", vendor: request.VendorFS},
		{description: "sqlite store", vendor: request.VendorSQLite},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			srv, sender := newService(t, func(c *mediaflow.Config) {
				c.Store.Vendor = testCase.vendor
				switch testCase.vendor {
				case request.VendorFS:
					c.Store.URL = filepath.Join(t.TempDir(), "requests")
				case request.VendorSQLite:
					c.Store.URL = filepath.Join(t.TempDir(), "mediaflow.db")
				}
			})
			rt := srv.Runtime()
			ctx := context.Background()
			r := submitted(t, rt)
			sender.Reset()

			result, err := rt.Decide(ctx, bob, r.ID, model.ActionManagerApprove, model.StatusSubmitted, "")
			require.NoError(t, err)
			assert.Equal(t, workflow.OutcomeApplied, result.Outcome, result.Reason)

			stored, err := rt.Request(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusManagerApproved, stored.Status)
			require.NotNil(t, stored.ManagerSignAt)
			assert.True(t, stored.ManagerSignAt.Equal(now))

			history, err := rt.History(ctx, r.ID)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, model.StageManager, history[1].Stage)
			assert.Equal(t, model.LabelApproved, history[1].Label)
			assert.Equal(t, "bob", history[1].Actor)

			requester := sender.To("alice@local.test")
			require.Len(t, requester, 1)
			assert.Equal(t, fmt.Sprintf("Update: Request %s approved by Manager", r.Number), requester[0].Subject)
			security := sender.To("carol@local.test")
			require.Len(t, security, 1)
			assert.Equal(t, fmt.Sprintf("Request %s awaiting Security review", r.Number), security[0].Subject)
			assert.Len(t, sender.Sent(), 2)

			inbox, err := rt.Inbox(ctx, model.StageSecurity)
			require.NoError(t, err)
			require.Len(t, inbox, 1)
			assert.Equal(t, r.ID, inbox[0].ID)
		})
	}
}

func TestService_ITCompletion(t *testing.T) {
	srv, sender := newService(t, nil)
	rt := srv.Runtime()
	ctx := context.Background()
	r := submitted(t, rt)
	for _, step := range []struct {
		actor  *model.Actor
		action model.Action
	}{{bob, model.ActionManagerApprove}, {carol, model.ActionSecurityApprove}} {
		result, err := rt.Decide(ctx, step.actor, r.ID, step.action, "", "")
		require.NoError(t, err)
		require.True(t, result.Applied(), result.Reason)
	}
	sender.Reset()

	result, err := rt.Decide(ctx, dave, r.ID, model.ActionITComplete, model.StatusSecurityApproved, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, result.Status())
	require.NotNil(t, result.Request.ITSignAt)
	assert.Equal(t, model.LabelCompleted, result.Decision.Label)

	messages := sender.To("alice@local.test")
	require.Len(t, messages, 1)
	assert.Equal(t, fmt.Sprintf("Completed: Request %s", r.Number), messages[0].Subject)
	assert.Contains(t, messages[0].HTMLBody, "until <b>2025-12-02</b>")

	dashboard, err := rt.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dashboard.Total)
	assert.Equal(t, 1, dashboard.Approved)
	assert.Equal(t, 0, dashboard.Pending)
	require.Len(t, dashboard.ByDepartment, 1)
	assert.Equal(t, &workflow.Count{Department: "HR", Count: 1}, dashboard.ByDepartment[0])
}

var managerLink = regexp.MustCompile(`href="([^"]*/WorkflowEmail/ManagerAction[^"]*)"`)

func TestService_EmailLink(t *testing.T) {
	srv, sender := newService(t, nil)
	rt := srv.Runtime()
	ctx := context.Background()
	r := submitted(t, rt)

	messages := sender.To("bob@local.test")
	require.Len(t, messages, 1)
	links := managerLink.FindAllStringSubmatch(messages[0].HTMLBody, -1)
	require.Len(t, links, 2)
	approve, err := url.Parse(html.UnescapeString(links[0][1]))
	require.NoError(t, err)
	assert.Equal(t, "portal.test", approve.Host)

	stage, ok := emailaction.StageForPath(approve.Path)
	require.True(t, ok)
	query := approve.Query()
	id, err := strconv.ParseInt(query.Get(emailaction.ParamRequestID), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, r.ID, id)

	result, err := rt.ConsumeEmailAction(ctx, stage, id, query.Get(emailaction.ParamToken), query.Get(emailaction.ParamAction))
	require.NoError(t, err)
	assert.Equal(t, workflow.OutcomeApplied, result.Outcome, result.Reason)
	assert.Equal(t, model.StatusManagerApproved, result.Status())
	assert.Equal(t, model.ViaEmailActor, result.Decision.Actor)
	assert.Equal(t, "Approved by Line Manager via email link.", result.Decision.Notes)

	replay, err := rt.ConsumeEmailAction(ctx, stage, id, query.Get(emailaction.ParamToken), emailaction.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, workflow.OutcomeInvalidToken, replay.Outcome)
	stored, err := rt.Request(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusManagerApproved, stored.Status)
}

func TestService_AsyncNotifications(t *testing.T) {
	srv, sender := newService(t, func(c *mediaflow.Config) {
		c.Notify.Async = true
		c.Notify.QueueBuffer = 10
	})
	rt := srv.Runtime()
	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))

	r := submitted(t, rt)
	assert.Equal(t, model.StatusSubmitted, r.Status)
	assert.Eventually(t, func() bool {
		return len(sender.Sent()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, sender.To("alice@local.test"), 1)
	assert.Len(t, sender.To("bob@local.test"), 1)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, rt.Shutdown(shutdownCtx))
	assert.Equal(t, 0, rt.Pending())
}

func TestService_AsyncQueueBounds(t *testing.T) {
	srv, sender := newService(t, func(c *mediaflow.Config) {
		c.Notify.Async = true
		c.Notify.QueueBuffer = 1
		c.Notify.Timeout = 50 * time.Millisecond
	})
	rt := srv.Runtime()
	ctx := context.Background()

	first := submit(t, rt)
	require.True(t, first.Applied(), first.Reason)
	assert.True(t, first.Notification.Queued)

	started := time.Now()
	full := submit(t, rt)
	assert.Less(t, time.Since(started), time.Second)
	require.True(t, full.Applied(), full.Reason)
	assert.Equal(t, model.StatusSubmitted, full.Status())
	assert.False(t, full.Notification.Queued)
	assert.Len(t, full.Notification.Failed(), 1)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, rt.Shutdown(shutdownCtx))
	closed := submit(t, rt)
	require.True(t, closed.Applied(), closed.Reason)
	assert.False(t, closed.Notification.Queued)
	require.Len(t, closed.Notification.Failed(), 1)
	assert.ErrorIs(t, closed.Notification.Failed()[0].Err, qmemory.ErrClosed)
	assert.Empty(t, sender.Sent())
}

func TestService_RejectedDraftWindow(t *testing.T) {
	srv, sender := newService(t, nil)
	rt := srv.Runtime()
	ctx := context.Background()
	startDate := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	draft, err := rt.CreateDraft(ctx, alice, &workflow.Draft{
		Details: model.Details{
			EmploymentStatus: "EMPLOYEE",
			Classification:   "OFFICIAL",
			Justification:    "archive copy",
		},
		StartDate: &startDate,
	})
	require.NoError(t, err)
	require.True(t, draft.Applied(), draft.Reason)

	result, err := rt.Submit(ctx, alice, draft.Request.ID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.OutcomeValidationFailed, result.Outcome)
	assert.ErrorIs(t, result.Err(), workflow.ErrValidation)
	assert.Empty(t, sender.Sent())

	mine, err := rt.Mine(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.StatusDraft, mine[0].Status)
	history, err := rt.History(ctx, draft.Request.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}
