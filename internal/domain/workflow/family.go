package workflow

// Family is the invoice family; each family has its own transition graph
type Family string

const (
	FamilyGuest      Family = "guest"
	FamilyContractor Family = "contractor"
	FamilyOther      Family = "other"
)

// IsValid returns true if the family is known
func (f Family) IsValid() bool {
	switch f {
	case FamilyGuest, FamilyContractor, FamilyOther:
		return true
	}
	return false
}

// String returns the string representation of the family
func (f Family) String() string {
	return string(f)
}

// Role is the directory role of an actor
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFinance Role = "finance"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleSystem  Role = "system"
)

// IsValid returns true if the role can be assigned to a stored user
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleFinance, RoleManager, RoleStaff:
		return true
	}
	return false
}

// SystemActorID identifies automated transitions
const SystemActorID = "system"

// Actor is the caller of a workflow operation
type Actor struct {
	ID             string
	Role           Role
	OperationsRoom bool
	Active         bool
}

// SystemActor returns the pseudo-actor used for automated transitions
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Role: RoleSystem, Active: true}
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
