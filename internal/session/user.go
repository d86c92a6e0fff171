// ABOUTME: UserProfile model mirroring the backend's user shape
// ABOUTME: Cached with the session and queried for role decisions

package session

import "time"

// AdminRole is the role name granted administrative access.
const AdminRole = "Admin"

// UserProfile is the backend's user record, cached alongside the token.
// Role queries read this cache; no network call is involved.
type UserProfile struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	RoleName    string    `json:"roleName"`
	RoleID      int64     `json:"roleId"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FullName returns the display name for the profile.
func (u *UserProfile) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
