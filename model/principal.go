package model

// Principal is the read-only projection of a directory user.
type Principal struct {
	// ID is the stable login identifier (sAMAccountName in AD terms)
	ID string `json:"id" yaml:"id"`

	// DisplayName is used when addressing the principal in messages
	DisplayName string `json:"displayName" yaml:"displayName"`

	// Email may be empty; principals without an email are not notified
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	Department string `json:"department,omitempty" yaml:"department,omitempty"`

	// ManagerID refers to the line manager's principal ID, empty when none
	ManagerID string `json:"managerId,omitempty" yaml:"managerId,omitempty"`

	// Groups lists directory group memberships
	Groups []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// InGroup returns true when the principal is a member of group.
func (p *Principal) InGroup(group string) bool {
	if p == nil {
		return false
	}
	for _, candidate := range p.Groups {
		if candidate == group {
			return true
		}
	}
	return false
}

// Actor projects the principal onto an actor whose roles are its groups.
func (p *Principal) Actor() *Actor {
	if p == nil {
		return nil
	}
	roles := make([]Role, 0, len(p.Groups))
	for _, group := range p.Groups {
		roles = append(roles, Role(group))
	}
	return NewActor(p.ID, roles...)
}
