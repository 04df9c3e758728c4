// Package emailaction issues and consumes the single-use tokens embedded in
// approve/reject links, letting a stage decide without a session. The Issuer
// is handed to the notifier; the Service is wired to the endpoint serving the
// links.
package emailaction

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/internal/token"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/notify"
	"github.com/viant/mediaflow/service/workflow"
)

// DefaultTTL is how long an issued token stays valid
const DefaultTTL = 48 * time.Hour

// Link query parameters
const (
	ParamRequestID = "requestId"
	ParamToken     = "token"
	ParamAction    = "action"
)

// Link actions
const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionComplete = "complete"
)

// ErrUnsupportedStage is returned for stages that cannot be decided by link
var ErrUnsupportedStage = errors.New("emailaction: stage does not support email actions")

type route struct {
	path string
	// name is how the stage signs its via-email notes
	name    string
	approve string
	actions map[string]model.Action
}

var routes = map[model.Stage]*route{
	model.StageManager: {
		path: "/WorkflowEmail/ManagerAction", name: "Line Manager", approve: ActionApprove,
		actions: map[string]model.Action{ActionApprove: model.ActionManagerApprove, ActionReject: model.ActionManagerReject},
	},
	model.StageSecurity: {
		path: "/WorkflowEmail/SecurityAction", name: "Security", approve: ActionApprove,
		actions: map[string]model.Action{ActionApprove: model.ActionSecurityApprove, ActionReject: model.ActionSecurityReject},
	},
	model.StageIT: {
		path: "/WorkflowEmail/ITAction", name: "IT", approve: ActionComplete,
		actions: map[string]model.Action{ActionComplete: model.ActionITComplete, ActionApprove: model.ActionITComplete, ActionReject: model.ActionITReject},
	},
}

// Path returns the endpoint path serving stage links
func Path(stage model.Stage) (string, error) {
	r, ok := routes[stage]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedStage, stage)
	}
	return r.path, nil
}

// StageForPath returns the stage served by path
func StageForPath(path string) (model.Stage, bool) {
	for stage, r := range routes {
		if strings.EqualFold(r.path, path) {
			return stage, true
		}
	}
	return "", false
}

// Config controls token lifetime and link base URL
type Config struct {
	BaseURL string        `json:"baseURL" yaml:"baseURL"`
	TTL     time.Duration `json:"ttl" yaml:"ttl"`
}

// Issuer stores tokens and renders the links carrying them
type Issuer struct {
	store  request.Store
	config Config
}

var _ notify.LinkIssuer = (*Issuer)(nil)

// NewIssuer creates an issuer writing tokens to store
func NewIssuer(store request.Store, config Config) *Issuer {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Issuer{store: store, config: config}
}

// Issue stores a fresh token for stage on the request, superseding any
// outstanding one, and returns the approve and reject links.
func (s *Issuer) Issue(ctx context.Context, requestID int64, stage model.Stage) (*model.ActionLinks, error) {
	r, ok := routes[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStage, stage)
	}
	value, err := token.New()
	if err != nil {
		return nil, err
	}
	expiresAt := clock.Now().Add(s.config.TTL)
	err = s.store.WithTx(ctx, requestID, func(tx request.Tx) error {
		current := tx.Request()
		current.Token = &model.ActionToken{Value: value, Stage: stage, ExpiresAt: expiresAt}
		return tx.Save(current)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue %s token for request %d: %w", stage, requestID, err)
	}
	return &model.ActionLinks{
		Approve: s.link(r, requestID, value, r.approve),
		Reject:  s.link(r, requestID, value, ActionReject),
	}, nil
}

// Service consumes email action tokens
type Service struct {
	workflow *workflow.Service
	logger   *logrus.Entry
}

// Option customises Service
type Option func(s *Service)

// WithLogger sets the logger
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates the service applying link decisions through wf
func New(wf *workflow.Service, options ...Option) *Service {
	ret := &Service{workflow: wf, logger: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

func (s *Issuer) link(r *route, requestID int64, value, action string) string {
	query := url.Values{}
	query.Set(ParamRequestID, strconv.FormatInt(requestID, 10))
	query.Set(ParamToken, value)
	query.Set(ParamAction, action)
	return s.config.BaseURL + r.path + "?" + query.Encode()
}

// Consume applies the decision a link stands for. The token must be the
// outstanding one for stage and unexpired; it is cleared in the same unit of
// work as the transition.
func (s *Service) Consume(ctx context.Context, stage model.Stage, requestID int64, value, action string) (*workflow.Result, error) {
	r, ok := routes[stage]
	if !ok {
		return &workflow.Result{Outcome: workflow.OutcomeValidationFailed, Reason: fmt.Sprintf("stage %s does not accept email actions", stage)}, nil
	}
	workflowAction, ok := r.actions[strings.ToLower(strings.TrimSpace(action))]
	if !ok {
		return &workflow.Result{Outcome: workflow.OutcomeValidationFailed, Reason: fmt.Sprintf("invalid action %q", action)}, nil
	}
	transition, _ := model.Lookup(workflowAction)
	result, err := s.workflow.Apply(ctx, &workflow.Command{
		RequestID: requestID,
		Action:    workflowAction,
		Actor:     model.NewActor(model.ViaEmailActor, transition.Role),
		Expected:  transition.From,
		Notes:     note(r, transition),
		Guard:     s.guard(stage, value),
	})
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"requestId": requestID, "action": workflowAction, "outcome": result.Outcome}
	if result.Request != nil {
		fields["request"] = result.Request.Number
	}
	if result.Applied() {
		s.logger.WithFields(fields).Info("email action consumed")
	} else {
		s.logger.WithFields(fields).Warnf("email action refused: %s", result.Reason)
	}
	return result, nil
}

func (s *Service) guard(stage model.Stage, value string) workflow.Guard {
	return func(current *model.Request) *workflow.Result {
		outstanding := current.Token
		switch {
		case outstanding == nil:
			return invalid("no outstanding token")
		case outstanding.Stage != stage:
			return invalid("token was issued for another stage")
		case !token.Equal(outstanding.Value, value):
			return invalid("token does not match")
		case outstanding.Expired(clock.Now()):
			return invalid("token expired")
		}
		current.Token = nil
		return nil
	}
}

func invalid(reason string) *workflow.Result {
	return &workflow.Result{Outcome: workflow.OutcomeInvalidToken, Reason: reason}
}

func note(r *route, transition *model.Transition) string {
	verb := "Approved"
	switch {
	case transition.Rejects():
		verb = "Rejected"
	case transition.Label == model.LabelCompleted:
		verb = "Completed"
	}
	return fmt.Sprintf("%s by %s via email link.", verb, r.name)
}
