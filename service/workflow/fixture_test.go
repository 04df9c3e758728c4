package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/dao/request/memory"
	"github.com/viant/mediaflow/service/dao/request/sqlite"
	dirmemory "github.com/viant/mediaflow/service/directory/memory"
	mailmemory "github.com/viant/mediaflow/service/mail/memory"
	"github.com/viant/mediaflow/service/notify"
)

var (
	now   = time.Date(2025, 11, 2, 17, 11, 47, 0, time.UTC)
	start = time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)

	alice = model.NewActor("alice", model.RoleRequester)
	bob   = model.NewActor("bob", model.RoleLineManager)
	carol = model.NewActor("carol", model.RoleSecurity)
	dave  = model.NewActor("dave", model.RoleITAdmin)
)

type fixture struct {
	store   request.Store
	sender  *mailmemory.Sender
	service *Service
}

func newFixture(t *testing.T, store request.Store) *fixture {
	t.Helper()
	restore := clock.Freeze(now)
	t.Cleanup(restore)
	if store == nil {
		store = memory.New()
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	dir := dirmemory.Default()
	sender := mailmemory.New("noreply@local.test")
	config := notify.DefaultConfig()
	config.BaseURL = "http://portal.test"
	dispatcher := notify.New(dir, sender, notify.WithConfig(config), notify.WithLogger(logrus.NewEntry(logger)))
	srv := New(store, WithNotifier(dispatcher), WithDirectory(dir), WithLogger(logrus.NewEntry(logger)))
	return &fixture{store: store, sender: sender, service: srv}
}

func storeFactories() map[string]func(t *testing.T) request.Store {
	return map[string]func(t *testing.T) request.Store{
		"memory": func(t *testing.T) request.Store { return memory.New() },
		"sqlite": func(t *testing.T) request.Store {
			store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "workflow.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func validDraft() *Draft {
	startDate, endDate := start, end
	return &Draft{
		Details: model.Details{
			EmploymentStatus: "EMPLOYEE",
			EmployeeNumber:   "E-1001",
			Classification:   "OFFICIAL",
			Justification:    "quarterly audit export",
		},
		StartDate: &startDate,
		EndDate:   &endDate,
	}
}

func (f *fixture) draft(t *testing.T) *model.Request {
	t.Helper()
	result, err := f.service.CreateDraft(context.Background(), alice, validDraft())
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome, result.Reason)
	return result.Request
}

func (f *fixture) apply(t *testing.T, id int64, action model.Action, actor *model.Actor, expected model.Status) *Result {
	t.Helper()
	result, err := f.service.Apply(context.Background(), &Command{
		RequestID:          id,
		Action:             action,
		Actor:              actor,
		Expected:           expected,
		ConfirmDeclaration: true,
	})
	require.NoError(t, err)
	return result
}

// advance drives a fresh draft through the given applied actions
func (f *fixture) advance(t *testing.T, steps ...model.Action) *model.Request {
	t.Helper()
	actors := map[model.Action]*model.Actor{
		model.ActionSubmit:          alice,
		model.ActionManagerApprove:  bob,
		model.ActionManagerReject:   bob,
		model.ActionManagerDelay:    bob,
		model.ActionManagerResume:   bob,
		model.ActionSecurityApprove: carol,
		model.ActionSecurityReject:  carol,
		model.ActionITComplete:      dave,
		model.ActionITReject:        dave,
	}
	r := f.draft(t)
	for _, action := range steps {
		result := f.apply(t, r.ID, action, actors[action], "")
		require.Equal(t, OutcomeApplied, result.Outcome, "%s: %s", action, result.Reason)
		r = result.Request
	}
	f.sender.Reset()
	return r
}
