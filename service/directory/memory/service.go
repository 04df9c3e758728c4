// Package memory provides a directory held in memory and seeded from YAML.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
	"github.com/viant/mediaflow/service/dao/store"
	"github.com/viant/mediaflow/service/directory"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML document shape of a directory file.
type Seed struct {
	Users []*model.Principal `yaml:"users"`
}

// Service is an in-memory directory; ids are matched case-insensitively.
type Service struct {
	principals *store.MemoryStore[string, model.Principal]
}

var _ directory.Service = (*Service)(nil)

func key(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// New creates a directory holding principals.
func New(principals ...*model.Principal) (*Service, error) {
	ret := &Service{principals: store.NewMemoryStore[string, model.Principal](func(p *model.Principal) string {
		return key(p.ID)
	})}
	for _, principal := range principals {
		if err := ret.Put(context.Background(), principal); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Default returns the built-in development directory: a requester, their
// line manager, one security officer and one IT administrator.
func Default() *Service {
	ret, _ := New(
		&model.Principal{ID: "alice", DisplayName: "Alice Ahmed", Email: "alice@local.test", Department: "HR", ManagerID: "bob", Groups: []string{string(model.RoleRequester)}},
		&model.Principal{ID: "bob", DisplayName: "Bob Saleh", Email: "bob@local.test", Department: "HR", ManagerID: "carol", Groups: []string{string(model.RoleLineManager)}},
		&model.Principal{ID: "carol", DisplayName: "Carol Omar", Email: "carol@local.test", Department: "Security", Groups: []string{string(model.RoleSecurity)}},
		&model.Principal{ID: "dave", DisplayName: "Dave Ali", Email: "dave@local.test", Department: "IT", Groups: []string{string(model.RoleITAdmin)}},
	)
	return ret
}

// Load reads a YAML seed file from URL (any afs supported scheme).
func Load(ctx context.Context, fs afs.Service, URL string) (*Service, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", URL, err)
	}
	seed := &Seed{}
	if err = yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("failed to decode directory %s: %w", URL, err)
	}
	return New(seed.Users...)
}

// Put adds or replaces a principal.
func (s *Service) Put(ctx context.Context, principal *model.Principal) error {
	if principal == nil {
		return dao.ErrNilEntity
	}
	if key(principal.ID) == "" {
		return fmt.Errorf("%w: principal id is empty", dao.ErrInvalidID)
	}
	clone := *principal
	clone.Groups = append([]string(nil), principal.Groups...)
	return s.principals.Save(ctx, &clone)
}

// Lookup returns the principal with id.
func (s *Service) Lookup(ctx context.Context, id string) (*model.Principal, error) {
	ret, err := s.principals.Load(ctx, key(id))
	if errors.Is(err, dao.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", directory.ErrUnknownPrincipal, id)
	}
	return ret, err
}

// MembersOf returns principals in group.
func (s *Service) MembersOf(ctx context.Context, group string) ([]*model.Principal, error) {
	all, err := s.principals.List(ctx)
	if err != nil {
		return nil, err
	}
	var ret []*model.Principal
	for _, principal := range all {
		if principal.InGroup(group) {
			ret = append(ret, principal)
		}
	}
	return ret, nil
}

// ManagerOf returns the manager id of principal id.
func (s *Service) ManagerOf(ctx context.Context, id string) (string, error) {
	principal, err := s.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return principal.ManagerID, nil
}
