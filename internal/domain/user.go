package domain

import "time"

// Role gates what a profile may do.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleUser       Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTechnician, RoleUser:
		return true
	}
	return false
}

// User is the identity record; other entities reference it by id.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserProfile associates a user with a company and a role.
type UserProfile struct {
	UserID    string
	CompanyID *string
	Role      Role
}

// Actor is the authenticated user performing a request.
type Actor struct {
	User    *User
	Profile *UserProfile
}

// ID returns the acting user's id.
func (a *Actor) ID() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.ID
}

// CompanyID returns the company of the actor's profile, if any.
func (a *Actor) CompanyID() *string {
	if a == nil || a.Profile == nil {
		return nil
	}
	return a.Profile.CompanyID
}

// Role returns the profile role, defaulting to RoleUser when no profile exists.
func (a *Actor) Role() Role {
	if a == nil || a.Profile == nil {
		return RoleUser
	}
	return a.Profile.Role
}

// Authenticated reports whether the actor carries a loaded user.
func (a *Actor) Authenticated() bool {
	return a != nil && a.User != nil && a.User.ID != ""
}
