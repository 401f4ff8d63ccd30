package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_PairKey_Is_Order_Independent(t *testing.T) {
	req := require.New(t)
	a := uuid.New()
	b := uuid.New()

	req.Equal(PairKey(a, b), PairKey(b, a))
	req.NotEqual(PairKey(a, b), PairKey(a, uuid.New()))
}

func Test_Room_OtherParticipant(t *testing.T) {
	req := require.New(t)
	a := uuid.New()
	b := uuid.New()
	room := Room{IsGroup: false, Participants: []uuid.UUID{a, b}}

	other, ok := room.OtherParticipant(a)
	req.True(ok)
	req.Equal(b, other)

	// Group rooms have no single "other" side
	room.IsGroup = true
	_, ok = room.OtherParticipant(a)
	req.False(ok)
}

func Test_Room_IsAdmin(t *testing.T) {
	req := require.New(t)
	admin := uuid.New()
	room := Room{IsGroup: true, Admin: &admin}

	req.True(room.IsAdmin(admin))
	req.False(room.IsAdmin(uuid.New()))
	req.False(Room{}.IsAdmin(admin))
}
