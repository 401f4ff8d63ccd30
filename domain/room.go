package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrivateRoomName is the stored display name of two-party rooms. Clients
// derive the visible name from the other participant, so the value is
// only a placeholder.
const PrivateRoomName = "Private Chat"

// Room is a channel with a membership set: either a two-party private room
// (no admin) or an admin-managed group room.
type Room struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	IsGroup      bool        `json:"is_group"`
	Participants []uuid.UUID `json:"participants"`
	Admin        *uuid.UUID  `json:"admin,omitempty"`
	Avatar       string      `json:"avatar,omitempty"`
	LastMessage  *uuid.UUID  `json:"last_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (r Room) HasParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (r Room) IsAdmin(userID uuid.UUID) bool {
	return r.Admin != nil && *r.Admin == userID
}

// OtherParticipant returns the peer of a two-party room.
func (r Room) OtherParticipant(userID uuid.UUID) (uuid.UUID, bool) {
	if r.IsGroup {
		return uuid.Nil, false
	}
	for _, p := range r.Participants {
		if p != userID {
			return p, true
		}
	}
	return uuid.Nil, false
}

// PairKey builds the canonical key of an unordered user pair.
// Both orderings of the same pair always produce the same key; this is
// what the at-most-one-private-room invariant hangs on.
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return as + ":" + bs
}
