package entity

import "time"

// User is a registered chat participant
type User struct {
	ID           int64     `json:"id"`
	OpenID       string    `json:"open_id"`
	Role         string    `json:"role"`
	ManagerRole  string    `json:"manager_role,omitempty"`
	FullName     string    `json:"full_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	IsBanned     bool      `json:"is_banned"`
	RegisteredAt time.Time `json:"registered_at"`
	Deletion
}

// CanAnnounce reports whether the user may broadcast announcements
func (u *User) CanAnnounce() bool {
	return u.Role == RoleManagement || u.Role == RoleAdmin
}

// DisplayName returns the full name or the open id when no name is known
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.OpenID
}
