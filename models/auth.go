// ABOUTME: Session and login models for the credential-delegation layer
// ABOUTME: Tokens and delegated credentials are never exposed to the client

package models

import "time"

// Credential is a username/password pair used for upstream basic auth.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// Identity is the authenticated user's upstream record.
type Identity struct {
	SysID    string `json:"sys_id"`
	UserName string `json:"user_name"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
}

// Session stores server-side authentication state for one logged-in user.
// The delegated credential is what actually calls upstream on the session's
// behalf; it may be the user's own credential or a shared service account,
// while identity and groups are always carried for query scoping.
type Session struct {
	Token     string     `json:"-"`
	Identity  Identity   `json:"identity"`
	Delegated Credential `json:"-"`
	Groups    []string   `json:"groups"`
	CreatedAt time.Time  `json:"created_at"`
}

// LoginRequest represents credentials submitted to /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login. The token is the only
// secret the browser ever holds.
type LoginResponse struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
	Groups   []string `json:"groups"`
}
