// Package domain contains core concepts of the messaging system.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account document. The realtime core only mutates
// IsOnline and LastSeen; everything else belongs to the profile-management
// collaborator.
type User struct {
	ID           uuid.UUID    `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"password_hash"`
	Avatar       string       `json:"avatar,omitempty"`
	IsOnline     bool         `json:"is_online"`
	LastSeen     time.Time    `json:"last_seen"`
	Settings     UserSettings `json:"settings"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type UserSettings struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	Sound         bool   `json:"sound"`
	Language      string `json:"language"`
}

func DefaultSettings() UserSettings {
	return UserSettings{Theme: "light", Notifications: true, Sound: true, Language: "en"}
}

// PublicProfile is the projection of a user attached to outbound events.
// It never carries credentials or settings.
type PublicProfile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
}

func (u User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
