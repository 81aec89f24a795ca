package models

import "time"

// Session carries the authenticated caller's identity. The API layer resolves
// a token to a session and passes email/role into services explicitly;
// services never read ambient session state.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
