// Package storetest holds behaviour checks shared by every request.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
	"github.com/viant/mediaflow/service/dao/request"
)

// Factory creates an empty store for one test.
type Factory func(t *testing.T) request.Store

var base = time.Date(2025, 11, 2, 17, 11, 47, 0, time.UTC)

// NewRequest returns a draft request suitable for persistence tests.
func NewRequest(number string, createdAt time.Time) *model.Request {
	start := createdAt
	end := createdAt.Add(30 * 24 * time.Hour)
	return &model.Request{
		Number:    number,
		Status:    model.StatusDraft,
		CreatedBy: "alice",
		CreatedAt: createdAt,
		StartDate: &start,
		EndDate:   &end,
		Details: model.Details{
			EmploymentStatus: "EMPLOYEE",
			Name:             "Alice Requester",
			LoginName:        "alice",
			Department:       "Finance",
			Classification:   "OFFICIAL",
			Justification:    "quarterly audit export",
		},
	}
}

func decision(id int64, seq int, stage model.Stage, label model.Label) *model.Decision {
	return &model.Decision{
		ID:        fmt.Sprintf("d-%d-%d", id, seq),
		RequestID: id,
		Stage:     stage,
		Label:     label,
		Actor:     "bob",
		DecidedAt: base.Add(time.Duration(seq) * time.Minute),
	}
}

// Run executes the shared store checks.
func Run(t *testing.T, factory Factory) {
	t.Run("create and load", func(t *testing.T) { testCreateLoad(t, factory(t)) })
	t.Run("duplicate number", func(t *testing.T) { testDuplicate(t, factory(t)) })
	t.Run("list", func(t *testing.T) { testList(t, factory(t)) })
	t.Run("tx commit", func(t *testing.T) { testCommit(t, factory(t)) })
	t.Run("tx rollback", func(t *testing.T) { testRollback(t, factory(t)) })
	t.Run("illegal status", func(t *testing.T) { testIllegalStatus(t, factory(t)) })
	t.Run("concurrent transition", func(t *testing.T) { testConcurrent(t, factory(t)) })
}

func testCreateLoad(t *testing.T, store request.Store) {
	ctx := context.Background()
	r := NewRequest("RM-20251102171147-000001", base)
	require.NoError(t, store.Create(ctx, r))
	assert.True(t, r.ID > 0)

	loaded, err := store.Load(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Number, loaded.Number)
	assert.Equal(t, model.StatusDraft, loaded.Status)
	assert.Equal(t, r.Details, loaded.Details)
	assert.True(t, r.EndDate.Equal(*loaded.EndDate))
	assert.Nil(t, loaded.ManagerSignAt)

	decisions, err := store.Decisions(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, decisions)

	_, err = store.Load(ctx, r.ID+100)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	err = store.WithTx(ctx, r.ID+100, func(tx request.Tx) error { return nil })
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func testDuplicate(t *testing.T, store request.Store) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, NewRequest("RM-1", base)))
	err := store.Create(ctx, NewRequest("RM-1", base))
	assert.True(t, errors.Is(err, dao.ErrDuplicate))
}

func testList(t *testing.T, store request.Store) {
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		r := NewRequest(fmt.Sprintf("RM-%d", i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Create(ctx, r))
		ids = append(ids, r.ID)
	}
	require.NoError(t, store.WithTx(ctx, ids[1], func(tx request.Tx) error {
		r := tx.Request()
		r.Status = model.StatusSubmitted
		return tx.Save(r)
	}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{all[0].ID, all[1].ID, all[2].ID})

	var testCases = []struct {
		description string
		parameters  []*dao.Parameter
		expect      []int64
	}{
		{description: "single status", parameters: []*dao.Parameter{dao.NewParameter(dao.StatusParameter, "Submitted")}, expect: []int64{ids[1]}},
		{description: "status set", parameters: []*dao.Parameter{dao.NewParameter(dao.StatusParameter, "Draft", "OnHold")}, expect: []int64{ids[2], ids[0]}},
		{description: "no match", parameters: []*dao.Parameter{dao.NewParameter(dao.StatusParameter, "Completed")}, expect: nil},
	}
	for _, testCase := range testCases {
		actual, err := store.List(ctx, testCase.parameters...)
		if !assert.NoError(t, err, testCase.description) {
			continue
		}
		var actualIDs []int64
		for _, r := range actual {
			actualIDs = append(actualIDs, r.ID)
		}
		assert.Equal(t, testCase.expect, actualIDs, testCase.description)
	}
}

func testCommit(t *testing.T, store request.Store) {
	ctx := context.Background()
	r := NewRequest("RM-commit", base)
	require.NoError(t, store.Create(ctx, r))

	err := store.WithTx(ctx, r.ID, func(tx request.Tx) error {
		current := tx.Request()
		current.Status = model.StatusSubmitted
		current.Sign(model.StageRequester, base)
		current.Token = &model.ActionToken{Value: "abc", Stage: model.StageManager, ExpiresAt: base.Add(48 * time.Hour)}
		if err := tx.Save(current); err != nil {
			return err
		}
		if err := tx.Append(decision(r.ID, 1, model.StageRequester, model.LabelSubmitted)); err != nil {
			return err
		}
		return tx.Append(decision(r.ID, 2, model.StageManager, model.LabelDelayed))
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, loaded.Status)
	require.NotNil(t, loaded.RequesterSignAt)
	assert.True(t, base.Equal(*loaded.RequesterSignAt))
	require.NotNil(t, loaded.Token)
	assert.Equal(t, "abc", loaded.Token.Value)
	assert.Equal(t, model.StageManager, loaded.Token.Stage)
	assert.True(t, base.Add(48*time.Hour).Equal(loaded.Token.ExpiresAt))

	decisions, err := store.Decisions(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, model.LabelSubmitted, decisions[0].Label)
	assert.Equal(t, model.LabelDelayed, decisions[1].Label)
	assert.Equal(t, fmt.Sprintf("d-%d-2", r.ID), decisions[1].ID)
}

func testRollback(t *testing.T, store request.Store) {
	ctx := context.Background()
	r := NewRequest("RM-rollback", base)
	require.NoError(t, store.Create(ctx, r))
	failure := errors.New("boom")

	err := store.WithTx(ctx, r.ID, func(tx request.Tx) error {
		current := tx.Request()
		current.Status = model.StatusSubmitted
		if err := tx.Save(current); err != nil {
			return err
		}
		if err := tx.Append(decision(r.ID, 1, model.StageRequester, model.LabelSubmitted)); err != nil {
			return err
		}
		return failure
	})
	assert.True(t, errors.Is(err, failure))

	loaded, err := store.Load(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, loaded.Status)
	decisions, err := store.Decisions(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func testIllegalStatus(t *testing.T, store request.Store) {
	ctx := context.Background()
	r := NewRequest("RM-illegal", base)
	require.NoError(t, store.Create(ctx, r))

	err := store.WithTx(ctx, r.ID, func(tx request.Tx) error {
		current := tx.Request()
		current.Status = model.StatusCompleted
		return tx.Save(current)
	})
	assert.True(t, errors.Is(err, request.ErrIllegalStatus))

	err = store.WithTx(ctx, r.ID, func(tx request.Tx) error {
		return tx.Append(decision(r.ID+1, 1, model.StageManager, model.LabelApproved))
	})
	assert.Error(t, err)

	loaded, err := store.Load(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, loaded.Status)
}

// testConcurrent races two units of work moving the same request out of
// Submitted; exactly one may win.
func testConcurrent(t *testing.T, store request.Store) {
	ctx := context.Background()
	r := NewRequest("RM-race", base)
	r.Status = model.StatusSubmitted
	require.NoError(t, store.Create(ctx, r))

	targets := []struct {
		status model.Status
		label  model.Label
	}{
		{model.StatusManagerApproved, model.LabelApproved},
		{model.StatusRejected, model.LabelRejected},
	}
	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, target := range targets {
		wg.Add(1)
		go func(i int, status model.Status, label model.Label) {
			defer wg.Done()
			errs[i] = store.WithTx(ctx, r.ID, func(tx request.Tx) error {
				current := tx.Request()
				if current.Status != model.StatusSubmitted {
					return dao.ErrConflict
				}
				current.Status = status
				if err := tx.Save(current); err != nil {
					return err
				}
				return tx.Append(decision(r.ID, i+1, model.StageManager, label))
			})
		}(i, target.status, target.label)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, dao.ErrConflict), err)
	}
	assert.Equal(t, 1, succeeded)
	decisions, err := store.Decisions(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}
