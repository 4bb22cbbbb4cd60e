// internal/models/user.go
package models

import "github.com/google/uuid"

// User is a persisted account record.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Password string    `json:"password,omitempty"` // argon2id encoded hash

	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}
