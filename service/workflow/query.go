package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
)

// RecentLimit caps Dashboard.Recent
const RecentLimit = 10

// Dashboard summarises all requests
type Dashboard struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	// Expired counts requests whose end date has passed, whatever their status
	Expired              int              `json:"expired"`
	ByDepartment         []*Count         `json:"byDepartment"`
	RejectedByDepartment []*Count         `json:"rejectedByDepartment"`
	// Recent holds the latest requests without their action tokens
	Recent               []*model.Request `json:"recent"`
}

// Count is a department tally
type Count struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// Get returns request id
func (s *Service) Get(ctx context.Context, id int64) (*model.Request, error) {
	return s.store.Load(ctx, id)
}

// History returns the decisions of request id in recording order
func (s *Service) History(ctx context.Context, id int64) ([]*model.Decision, error) {
	return s.ledger.History(ctx, id)
}

// InboxStatuses returns the statuses awaiting a decision from stage
func InboxStatuses(stage model.Stage) []model.Status {
	switch stage {
	case model.StageManager:
		return []model.Status{model.StatusSubmitted, model.StatusOnHold}
	case model.StageSecurity:
		return []model.Status{model.StatusManagerApproved}
	case model.StageIT:
		return []model.Status{model.StatusSecurityApproved}
	case model.StageRequester:
		return []model.Status{model.StatusDraft}
	}
	return nil
}

// Inbox returns requests awaiting stage, newest first
func (s *Service) Inbox(ctx context.Context, stage model.Stage) ([]*model.Request, error) {
	statuses := InboxStatuses(stage)
	if len(statuses) == 0 {
		return []*model.Request{}, nil
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	parameter := &dao.Parameter{Name: dao.StatusParameter, Value: values}
	return s.store.List(ctx, parameter)
}

// Mine returns requests created by actorID, newest first
func (s *Service) Mine(ctx context.Context, actorID string) ([]*model.Request, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]*model.Request, 0)
	for _, r := range all {
		if r.CreatedBy == actorID {
			ret = append(ret, r)
		}
	}
	return ret, nil
}

// Dashboard computes the summary as of now
func (s *Service) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	ret := &Dashboard{Total: len(all)}
	byDepartment := map[string]int{}
	rejectedByDepartment := map[string]int{}
	for _, r := range all {
		switch r.Status {
		case model.StatusSubmitted, model.StatusOnHold:
			ret.Pending++
		case model.StatusManagerApproved, model.StatusSecurityApproved, model.StatusCompleted:
			ret.Approved++
		case model.StatusRejected:
			ret.Rejected++
		}
		if r.EndDate != nil && r.EndDate.Before(now) {
			ret.Expired++
		}
		if department := r.Details.Department; department != "" {
			byDepartment[department]++
			if r.Status == model.StatusRejected {
				rejectedByDepartment[department]++
			}
		}
	}
	ret.ByDepartment = counts(byDepartment)
	ret.RejectedByDepartment = counts(rejectedByDepartment)
	if len(all) > RecentLimit {
		all = all[:RecentLimit]
	}
	ret.Recent = make([]*model.Request, 0, len(all))
	for _, r := range all {
		ret.Recent = append(ret.Recent, r.Redacted())
	}
	return ret, nil
}

func counts(tally map[string]int) []*Count {
	ret := make([]*Count, 0, len(tally))
	for department, count := range tally {
		ret = append(ret, &Count{Department: department, Count: count})
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Count == ret[j].Count {
			return ret[i].Department < ret[j].Department
		}
		return ret[i].Count > ret[j].Count
	})
	return ret
}
