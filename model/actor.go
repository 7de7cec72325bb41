package model

// Role is the closed set of actor roles.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RolePolice Role = "police"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RolePolice:
		return true
	}
	return false
}

// Actor is the authenticated identity invoking an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is recorded on entries written by maintenance routines.
var SystemActor = Actor{ID: "system", Role: RoleAdmin}
