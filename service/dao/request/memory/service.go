package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
	"github.com/viant/mediaflow/service/dao/criteria"
	"github.com/viant/mediaflow/service/dao/request"
)

// Service is an in-memory request store (dev/testing).
type Service struct {
	mu        sync.RWMutex
	nextID    int64
	requests  map[int64]*model.Request
	numbers   map[string]int64
	decisions map[int64][]*model.Decision
	locks     map[int64]*sync.Mutex
}

// New creates an empty store.
func New() *Service {
	return &Service{
		requests:  map[int64]*model.Request{},
		numbers:   map[string]int64{},
		decisions: map[int64][]*model.Decision{},
		locks:     map[int64]*sync.Mutex{},
	}
}

// Create stores a new request and assigns its ID.
func (s *Service) Create(ctx context.Context, r *model.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil {
		return dao.ErrNilEntity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.numbers[r.Number]; ok {
		return fmt.Errorf("%w: request number %s", dao.ErrDuplicate, r.Number)
	}
	s.nextID++
	r.ID = s.nextID
	s.requests[r.ID] = r.Clone()
	s.numbers[r.Number] = r.ID
	s.locks[r.ID] = &sync.Mutex{}
	return nil
}

// Load returns a snapshot of request id.
func (s *Service) Load(ctx context.Context, id int64) (*model.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", dao.ErrNotFound, id)
	}
	return r.Clone(), nil
}

// List returns matching requests, newest first.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	ret := make([]*model.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if criteria.FilterByStatus(string(r.Status), parameters) {
			ret = append(ret, r.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].ID > ret[j].ID
		}
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret, nil
}

// Decisions returns the ledger of request id in insertion order.
func (s *Service) Decisions(ctx context.Context, id int64) ([]*model.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.requests[id]; !ok {
		return nil, fmt.Errorf("%w: request %d", dao.ErrNotFound, id)
	}
	ret := make([]*model.Decision, 0, len(s.decisions[id]))
	for _, d := range s.decisions[id] {
		decision := *d
		ret = append(ret, &decision)
	}
	return ret, nil
}

// WithTx runs fn holding the request lock and commits its writes on success.
func (s *Service) WithTx(ctx context.Context, id int64, fn func(tx request.Tx) error) error {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: request %d", dao.ErrNotFound, id)
	}
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	t := &tx{id: id, loaded: current, status: current.Status}
	if err = fn(t); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Service) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.requests[t.id]
	if stored.Status != t.status {
		return fmt.Errorf("%w: request %d is %s, expected %s", dao.ErrConflict, t.id, stored.Status, t.status)
	}
	if t.saved != nil {
		s.requests[t.id] = t.saved
	}
	s.decisions[t.id] = append(s.decisions[t.id], t.appended...)
	return nil
}

type tx struct {
	id       int64
	loaded   *model.Request
	status   model.Status
	saved    *model.Request
	appended []*model.Decision
}

func (t *tx) Request() *model.Request {
	if t.saved != nil {
		return t.saved.Clone()
	}
	return t.loaded.Clone()
}

func (t *tx) Save(r *model.Request) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if r.ID != t.id {
		return fmt.Errorf("%w: %d", dao.ErrInvalidID, r.ID)
	}
	if err := request.CheckStatusChange(t.status, r.Status); err != nil {
		return err
	}
	t.saved = r.Clone()
	return nil
}

func (t *tx) Append(d *model.Decision) error {
	if err := request.CheckDecision(t.id, d); err != nil {
		return err
	}
	decision := *d
	t.appended = append(t.appended, &decision)
	return nil
}

var _ request.Store = (*Service)(nil)
