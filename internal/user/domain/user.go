package domain

import (
	"errors"
	"time"
)

// User is the identity-independent account. Authentication methods hang off
// it as identities; it is never physically deleted, only soft-disabled.
type User struct {
	ID         string
	Role       Role
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DisabledAt *time.Time // nil unless status is disabled
}

type Role string

const (
	RoleRootAdmin Role = "root_admin"
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusPending  Status = "pending"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleRootAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusDisabled, StatusPending:
		return true
	}
	return false
}

// IsActive reports whether the user may authenticate and hold sessions.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// Validate validates the user for persistence.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	if !ValidRole(u.Role) {
		return errors.New("unknown user role")
	}
	if !ValidStatus(u.Status) {
		return errors.New("unknown user status")
	}
	return nil
}

// AdminUpdate carries the fields an admin may change. Nil pointers mean
// "leave unchanged"; the merge is explicit per field so zero values are
// never applied by accident.
type AdminUpdate struct {
	Role   *Role
	Status *Status
}

// Apply merges upd onto u. Disabling records DisabledAt; re-enabling clears
// it. Reports whether anything changed.
func (u *User) Apply(upd AdminUpdate, now time.Time) bool {
	changed := false
	if upd.Role != nil && *upd.Role != u.Role {
		u.Role = *upd.Role
		changed = true
	}
	if upd.Status != nil && *upd.Status != u.Status {
		u.Status = *upd.Status
		if u.Status == StatusDisabled {
			at := now
			u.DisabledAt = &at
		} else {
			u.DisabledAt = nil
		}
		changed = true
	}
	if changed {
		u.UpdatedAt = now
	}
	return changed
}
