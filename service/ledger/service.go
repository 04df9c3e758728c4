// Package ledger records stage decisions. Entries are only ever appended, and
// always inside the unit of work that changes the request status.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/mediaflow/internal/idgen"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao/request"
)

// ErrInvalidEntry is returned for decisions that cannot be recorded.
var ErrInvalidEntry = errors.New("ledger: invalid entry")

// Appender accepts decisions as part of an open unit of work; request.Tx
// satisfies it.
type Appender interface {
	Append(d *model.Decision) error
}

// Entry describes a decision to be recorded.
type Entry struct {
	RequestID int64
	Stage     model.Stage
	Label     model.Label
	Actor     string
	Notes     string
	DecidedAt time.Time
}

// Service records and reads the decision ledger.
type Service struct {
	store request.Store
}

// New creates a ledger over store.
func New(store request.Store) *Service {
	return &Service{store: store}
}

// Record appends one decision through to and returns it.
func (s *Service) Record(to Appender, entry *Entry) (*model.Decision, error) {
	if to == nil {
		return nil, fmt.Errorf("%w: no unit of work", ErrInvalidEntry)
	}
	if err := entry.validate(); err != nil {
		return nil, err
	}
	decision := &model.Decision{
		ID:        idgen.New(),
		RequestID: entry.RequestID,
		Stage:     entry.Stage,
		Label:     entry.Label,
		Notes:     strings.TrimSpace(entry.Notes),
		Actor:     entry.Actor,
		DecidedAt: entry.DecidedAt.UTC(),
	}
	if err := to.Append(decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// History returns the decisions of request id in recording order.
func (s *Service) History(ctx context.Context, id int64) ([]*model.Decision, error) {
	return s.store.Decisions(ctx, id)
}

func (e *Entry) validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	case e.RequestID <= 0:
		return fmt.Errorf("%w: request id %d", ErrInvalidEntry, e.RequestID)
	case !e.Stage.IsValid():
		return fmt.Errorf("%w: stage %q", ErrInvalidEntry, e.Stage)
	case !e.Label.IsValid():
		return fmt.Errorf("%w: decision %q", ErrInvalidEntry, e.Label)
	case strings.TrimSpace(e.Actor) == "":
		return fmt.Errorf("%w: actor is required", ErrInvalidEntry)
	case e.DecidedAt.IsZero():
		return fmt.Errorf("%w: decidedAt is required", ErrInvalidEntry)
	}
	return nil
}
