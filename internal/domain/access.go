package domain

import (
	"fmt"
	"strings"
	"time"
)

// Access scopes for permissions.
const (
	AccessOwn = "own"
	AccessAny = "any"
)

// Role aggregates permissions. Users hold roles, never permissions directly.
type Role struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Permission is the (action, entity, access) tuple granted through roles.
type Permission struct {
	ID          string    `json:"id" db:"id"`
	Action      string    `json:"action" db:"action"`
	Entity      string    `json:"entity" db:"entity"`
	Access      string    `json:"access" db:"access"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PermissionCheck is a parsed permission requirement. Access is empty when
// the requirement does not constrain the scope.
type PermissionCheck struct {
	Action string `json:"action"`
	Entity string `json:"entity"`
	Access string `json:"access,omitempty"`
}

// String renders the check back into "action:entity[:access]" form.
func (p PermissionCheck) String() string {
	if p.Access == "" {
		return p.Action + ":" + p.Entity
	}
	return p.Action + ":" + p.Entity + ":" + p.Access
}

// ParsePermission parses a "action:entity[:access]" requirement string.
func ParsePermission(s string) (PermissionCheck, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return PermissionCheck{}, fmt.Errorf("malformed permission %q, want action:entity[:access]", s)
	}

	check := PermissionCheck{Action: parts[0], Entity: parts[1]}
	if len(parts) == 3 {
		if parts[2] != AccessOwn && parts[2] != AccessAny {
			return PermissionCheck{}, fmt.Errorf("malformed permission %q: access must be %q or %q", s, AccessOwn, AccessAny)
		}
		check.Access = parts[2]
	}

	return check, nil
}
