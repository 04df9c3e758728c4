// Package directory defines the identity directory consumed by the workflow
// engine. The engine reads principals; it never owns or mutates them.
package directory

import (
	"context"
	"errors"

	"github.com/viant/mediaflow/model"
)

// ErrUnknownPrincipal is returned by Lookup when no principal matches.
var ErrUnknownPrincipal = errors.New("directory: unknown principal")

// Service resolves principals, group members and line managers.
type Service interface {
	// Lookup returns the principal with id, or ErrUnknownPrincipal
	Lookup(ctx context.Context, id string) (*model.Principal, error)

	// MembersOf returns all principals in group, in directory order
	MembersOf(ctx context.Context, group string) ([]*model.Principal, error)

	// ManagerOf returns the manager id of principal id, empty when none
	ManagerOf(ctx context.Context, id string) (string, error)
}
