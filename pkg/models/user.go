package models

import (
	"time"

	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `bun:",nullzero" json:"username"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	RoleID       int       `json:"role_id"`
	IsActive     bool      `json:"is_active"`

	Role *Role `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// HasPermission checks if the user has a specific permission.
func (u *User) HasPermission(resource, operation string) bool {
	if u.Role == nil {
		return false
	}
	return u.Role.HasPermission(resource, operation)
}

// Actor maps the user's role onto the capability the lending policy knows
// about. Only the admin role carries the administrator capability.
func (u *User) Actor() policy.Actor {
	role := policy.RoleMember
	if u.Role != nil && u.Role.Name == RoleAdmin {
		role = policy.RoleAdministrator
	}
	return policy.Actor{ID: u.ID, Role: role}
}
