package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/internal/idgen"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
)

const numberAttempts = 3

// Draft is the requester input for a new request
type Draft struct {
	Details   model.Details `json:"details"`
	StartDate *time.Time    `json:"startDate,omitempty"`
	EndDate   *time.Time    `json:"endDate,omitempty"`
}

// CreateDraft stores a new Draft request owned by actor. Blank name,
// department and login name are taken from the actor's directory entry.
func (s *Service) CreateDraft(ctx context.Context, actor *model.Actor, draft *Draft) (*Result, error) {
	if actor == nil || actor.ID == "" || !actor.Has(model.RoleRequester) {
		return reject(OutcomeForbidden, "", nil, "actor is not permitted to create requests"), nil
	}
	if draft == nil {
		return reject(OutcomeValidationFailed, "", nil, "draft is required"), nil
	}
	now := clock.Now()
	r := &model.Request{
		Status:    model.StatusDraft,
		Details:   draft.Details,
		StartDate: draft.StartDate,
		EndDate:   draft.EndDate,
		CreatedBy: actor.ID,
		CreatedAt: now,
	}
	if err := s.prefill(ctx, r); err != nil {
		return nil, err
	}
	if err := r.Details.Validate(); err != nil {
		return reject(OutcomeValidationFailed, "", r, "%v", err), nil
	}
	if err := r.ValidateWindow(false); err != nil {
		return reject(OutcomeValidationFailed, "", r, "%v", err), nil
	}
	var err error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		r.Number = idgen.RequestNumber(s.prefix, now)
		if err = s.store.Create(ctx, r); !errors.Is(err, dao.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"request": r.Number, "actor": actor.ID}).Info("draft created")
	return &Result{Outcome: OutcomeApplied, Request: r}, nil
}

func (s *Service) prefill(ctx context.Context, r *model.Request) error {
	if s.directory == nil {
		return nil
	}
	details := &r.Details
	if strings.TrimSpace(details.Name) != "" && strings.TrimSpace(details.Department) != "" && strings.TrimSpace(details.LoginName) != "" {
		return nil
	}
	principal, err := s.directory.Lookup(ctx, r.CreatedBy)
	if err != nil {
		s.logger.WithField("actor", r.CreatedBy).WithError(err).Warn("draft prefill skipped")
		return nil
	}
	if strings.TrimSpace(details.Name) == "" {
		details.Name = principal.DisplayName
	}
	if strings.TrimSpace(details.Department) == "" {
		details.Department = principal.Department
	}
	if strings.TrimSpace(details.LoginName) == "" {
		details.LoginName = principal.ID
	}
	return nil
}
