package domain

import "time"

// User is the cached profile returned by the backend on login.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsStaff   bool   `json:"is_staff,omitempty"`
}

// Credentials is what the backend login endpoint hands out.
type Credentials struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type SessionState struct {
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
	User         *User      `json:"user,omitempty"`
}

// IsAuthenticated only checks that an access token is held; expiry is dealt
// with by the token refresh path.
func (s SessionState) IsAuthenticated() bool {
	return s.AccessToken != ""
}
