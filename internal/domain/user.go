package domain

import "time"

// User is a principal of the admin panel.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserView is the public projection of a User returned to clients and
// embedded in tokens.
type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
}

// View strips the credential fields.
func (u *User) View() UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		DisplayName: u.DisplayName,
	}
}
