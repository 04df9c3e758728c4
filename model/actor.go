package model

// Role is a capability an actor holds; values match directory group names.
type Role string

const (
	RoleRequester   Role = "RM_Requesters"
	RoleLineManager Role = "RM_LineManagers"
	RoleSecurity    Role = "RM_Security"
	RoleITAdmin     Role = "RM_ITAdmins"
)

// ViaEmailActor is recorded as the decision actor when a transition is driven
// by an email action link instead of an authenticated session.
const ViaEmailActor = "(via email)"

// Actor is the authenticated principal invoking a transition.
type Actor struct {
	ID    string `json:"id"`
	Roles []Role `json:"roles,omitempty"`
}

// NewActor creates an actor holding the given roles.
func NewActor(id string, roles ...Role) *Actor {
	return &Actor{ID: id, Roles: roles}
}

// Has returns true when the actor holds role.
func (a *Actor) Has(role Role) bool {
	if a == nil {
		return false
	}
	for _, candidate := range a.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}
