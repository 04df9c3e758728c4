package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mediaflow/model"
	dirmemory "github.com/viant/mediaflow/service/directory/memory"
	mailmemory "github.com/viant/mediaflow/service/mail/memory"
)

type issuer struct {
	err    error
	stages []model.Stage
}

func (i *issuer) Issue(ctx context.Context, requestID int64, stage model.Stage) (*model.ActionLinks, error) {
	i.stages = append(i.stages, stage)
	if i.err != nil {
		return nil, i.err
	}
	return &model.ActionLinks{
		Approve: "http://portal.test/WorkflowEmail/ManagerAction?requestId=1&token=tok&action=approve",
		Reject:  "http://portal.test/WorkflowEmail/ManagerAction?requestId=1&token=tok&action=reject",
	}, nil
}

func newRequest(createdBy string) *model.Request {
	start := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	return &model.Request{
		ID:        1,
		Number:    "RM-20251102171147-3f9a1c",
		Status:    model.StatusSubmitted,
		CreatedBy: createdBy,
		StartDate: &start,
		EndDate:   &end,
		Details:   model.Details{Name: "Alice Ahmed", Department: "HR"},
	}
}

func testConfig() Config {
	config := DefaultConfig()
	config.BaseURL = "http://portal.test/"
	return config
}

func TestDispatcher_Notify(t *testing.T) {
	var testCases = []struct {
		description string
		event       func(r *model.Request) Event
		createdBy   string
		groupLinks  bool
		expect      map[string][]string
		expectSkip  []string
	}{
		{
			description: "submitted notifies requester and manager",
			event:       func(r *model.Request) Event { return NewSubmitted(r) },
			createdBy:   "alice",
			expect: map[string][]string{
				"alice@local.test": {"Your request RM-20251102171147-3f9a1c was submitted", "http://portal.test/Requests/Details/1", "Track it here"},
				"bob@local.test": {"Request RM-20251102171147-3f9a1c awaiting your approval", "from Alice Ahmed (HR)", "2025-11-03 to 2025-12-02",
					`href="http://portal.test/WorkflowEmail/ManagerAction?requestId=1&amp;token=tok&amp;action=approve"`, "http://portal.test/Manager"},
			},
		},
		{
			description: "submitted without manager skips manager branch only",
			event:       func(r *model.Request) Event { return NewSubmitted(r) },
			createdBy:   "dave",
			expect: map[string][]string{
				"dave@local.test": {"Your request RM-20251102171147-3f9a1c was submitted"},
			},
			expectSkip: []string{"no manager"},
		},
		{
			description: "manager approved notifies requester and security",
			event:       func(r *model.Request) Event { return NewManagerApproved(r) },
			createdBy:   "alice",
			expect: map[string][]string{
				"alice@local.test": {"Update: Request RM-20251102171147-3f9a1c approved by Manager", "forwarded to Security"},
				"carol@local.test": {"Request RM-20251102171147-3f9a1c awaiting Security review", "http://portal.test/Security"},
			},
		},
		{
			description: "security approved notifies requester and IT with action links",
			event:       func(r *model.Request) Event { return NewSecurityApproved(r) },
			createdBy:   "alice",
			groupLinks:  true,
			expect: map[string][]string{
				"alice@local.test": {"Update: Request RM-20251102171147-3f9a1c approved by Security"},
				"dave@local.test":  {"Request RM-20251102171147-3f9a1c awaiting IT action", ">Complete</a>", "http://portal.test/IT"},
			},
		},
		{
			description: "completed includes end date",
			event:       func(r *model.Request) Event { return NewCompleted(r) },
			createdBy:   "alice",
			expect: map[string][]string{
				"alice@local.test": {"Completed: Request RM-20251102171147-3f9a1c", "has been completed until <b>2025-12-02</b>."},
			},
		},
		{
			description: "rejection escapes notes",
			event: func(r *model.Request) Event {
				return NewRejected(r, model.StageSecurity, `<script>alert("x")</script>`)
			},
			createdBy: "alice",
			expect: map[string][]string{
				"alice@local.test": {"Request RM-20251102171147-3f9a1c was rejected", "was rejected by Security.", "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;"},
			},
		},
		{
			description: "rejection without notes",
			event:       func(r *model.Request) Event { return NewRejected(r, model.StageIT, "  ") },
			createdBy:   "alice",
			expect: map[string][]string{
				"alice@local.test": {"was rejected by IT Department.", "<b>Notes:</b> (no notes)"},
			},
		},
	}

	for _, testCase := range testCases {
		sender := mailmemory.New("noreply@local.test")
		config := testConfig()
		config.GroupActionLinks = testCase.groupLinks
		dispatcher := New(dirmemory.Default(), sender, WithConfig(config), WithLinkIssuer(&issuer{}))

		report := dispatcher.Notify(context.Background(), testCase.event(newRequest(testCase.createdBy)))
		assert.Empty(t, report.Failed(), testCase.description)
		assert.Equal(t, len(testCase.expect), report.Sent(), testCase.description)
		assert.Equal(t, len(testCase.expect), len(sender.Sent()), testCase.description)
		for recipient, fragments := range testCase.expect {
			messages := sender.To(recipient)
			if !assert.Len(t, messages, 1, testCase.description+" "+recipient) {
				continue
			}
			text := messages[0].Subject + "\n" + messages[0].HTMLBody
			for _, fragment := range fragments {
				assert.Contains(t, text, fragment, testCase.description)
			}
			assert.NotContains(t, text, "<script>", testCase.description)
		}
		var reasons []string
		for _, skipped := range report.Skipped() {
			reasons = append(reasons, skipped.Reason)
		}
		assert.Equal(t, testCase.expectSkip, reasons, testCase.description)
	}
}

func TestDispatcher_RecipientIsolation(t *testing.T) {
	dir := dirmemory.Default()
	ctx := context.Background()
	require.NoError(t, dir.Put(ctx, &model.Principal{ID: "sam", DisplayName: "Sam NoMail", Groups: []string{string(model.RoleSecurity)}}))
	require.NoError(t, dir.Put(ctx, &model.Principal{ID: "rita", DisplayName: "Rita Security", Email: "rita@local.test", Groups: []string{string(model.RoleSecurity)}}))

	sender := mailmemory.New("noreply@local.test", mailmemory.WithFailure("carol@local.test", errors.New("550 mailbox full")))
	dispatcher := New(dir, sender, WithConfig(testConfig()))

	report := dispatcher.Notify(ctx, NewManagerApproved(newRequest("alice")))
	assert.Equal(t, 2, report.Sent())
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "carol@local.test", report.Failed()[0].Recipient)
	require.Len(t, report.Skipped(), 1)
	assert.Equal(t, "sam", report.Skipped()[0].Principal)
	assert.Equal(t, "no email", report.Skipped()[0].Reason)
	assert.Len(t, sender.To("alice@local.test"), 1)
	assert.Len(t, sender.To("rita@local.test"), 1)
}

func TestDispatcher_IssuerFailureFallsBack(t *testing.T) {
	sender := mailmemory.New("noreply@local.test")
	links := &issuer{err: errors.New("store unavailable")}
	dispatcher := New(dirmemory.Default(), sender, WithConfig(testConfig()), WithLinkIssuer(links))

	report := dispatcher.Notify(context.Background(), NewSubmitted(newRequest("alice")))
	assert.Equal(t, 2, report.Sent())
	assert.Equal(t, []model.Stage{model.StageManager}, links.stages)
	messages := sender.To("bob@local.test")
	require.Len(t, messages, 1)
	assert.NotContains(t, messages[0].HTMLBody, "action=approve")
	assert.Contains(t, messages[0].HTMLBody, "Open Approvals")
}

func TestDispatcher_SendTimeout(t *testing.T) {
	sender := mailmemory.New("noreply@local.test", mailmemory.WithDelay(time.Second))
	config := testConfig()
	config.Timeout = 10 * time.Millisecond
	dispatcher := New(dirmemory.Default(), sender, WithConfig(config))

	started := time.Now()
	report := dispatcher.Notify(context.Background(), NewCompleted(newRequest("alice")))
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	require.Len(t, report.Failed(), 1)
	assert.True(t, errors.Is(report.Failed()[0].Err, context.DeadlineExceeded))
}

func TestDispatcher_UnknownRequester(t *testing.T) {
	sender := mailmemory.New("noreply@local.test")
	dispatcher := New(dirmemory.Default(), sender, WithConfig(testConfig()))
	report := dispatcher.Notify(context.Background(), NewCompleted(newRequest("mallory")))
	assert.Empty(t, report.Failed())
	require.Len(t, report.Skipped(), 1)
	assert.True(t, strings.Contains(report.Skipped()[0].Reason, "unknown"))
	assert.Empty(t, sender.Sent())
}
