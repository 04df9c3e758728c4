// Package request defines persistence of media access requests together with
// their decision ledger.
//
// Every status change goes through Store.WithTx: the request row and the
// decisions appended for it are written in one unit of work, so a reader never
// observes a new status without its decision, or the reverse.
package request

import (
	"context"

	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
)

// Vendor names a Store implementation
type Vendor string

const (
	VendorMemory Vendor = "memory"
	VendorFS     Vendor = "fs"
	VendorSQLite Vendor = "sqlite"
)

// Store persists requests and their decisions.
type Store interface {
	// Create assigns an ID to a new request and stores it. Request numbers are
	// unique; a duplicate returns dao.ErrDuplicate.
	Create(ctx context.Context, r *model.Request) error

	// Load returns a snapshot of the request or dao.ErrNotFound.
	Load(ctx context.Context, id int64) (*model.Request, error)

	// List returns snapshots filtered by dao.StatusParameter, newest first.
	List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Request, error)

	// Decisions returns the ledger of a request in insertion order.
	Decisions(ctx context.Context, id int64) ([]*model.Decision, error)

	// WithTx runs fn as one unit of work over a single request. Work on the
	// same request is serialised; when fn returns an error nothing is written.
	WithTx(ctx context.Context, id int64, fn func(tx Tx) error) error
}

// Tx is the unit of work over one request row.
type Tx interface {
	// Request returns the current persisted request.
	Request() *model.Request

	// Save writes the request. The status stored when the unit of work began
	// must still be current, otherwise dao.ErrConflict is returned.
	Save(r *model.Request) error

	// Append adds a decision to the ledger.
	Append(d *model.Decision) error
}
