package domain

import "time"

// IssuedToken is the result of a successful login.
type IssuedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	User      UserView
}
