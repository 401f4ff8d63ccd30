package hub

import (
	"log/slog"
	"testing"

	"chat-hub/sink"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSink() *sink.ChannelSink {
	return sink.NewChannelSink(slog.Default(), 8)
}

func Test_Presence_Register_Returns_Prior_Handle(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	userID := uuid.New()

	first := newSink()
	req.Nil(presence.Register(userID, first))
	req.True(presence.IsOnline(userID))

	second := newSink()
	prior := presence.Register(userID, second)
	req.Equal(sink.EventSink(first), prior)

	current, ok := presence.HandleFor(userID)
	req.True(ok)
	req.Equal(sink.EventSink(second), current)
}

func Test_Presence_Unregister_Checks_Identity(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	userID := uuid.New()

	first := newSink()
	second := newSink()
	presence.Register(userID, first)
	presence.Register(userID, second)

	// The replaced handle cannot take the new one down
	req.False(presence.Unregister(userID, first))
	req.True(presence.IsOnline(userID))

	req.True(presence.Unregister(userID, second))
	req.False(presence.IsOnline(userID))
	req.False(presence.Unregister(userID, second))
}

func Test_Membership_Subscribe_And_Cleanup(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	userID := uuid.New()
	roomID := uuid.New()
	otherRoom := uuid.New()

	membership.Subscribe(userID, roomID)
	membership.Subscribe(userID, otherRoom)

	req.True(membership.IsMember(userID, roomID))
	req.ElementsMatch([]uuid.UUID{roomID, otherRoom}, membership.RoomsOf(userID))
	req.Equal([]uuid.UUID{userID}, membership.MembersOf(roomID))

	membership.Unsubscribe(userID, roomID)
	req.False(membership.IsMember(userID, roomID))
	req.Empty(membership.MembersOf(roomID))
	req.Equal([]uuid.UUID{otherRoom}, membership.RoomsOf(userID))

	// Removing the last room clears the user entry entirely
	membership.Unsubscribe(userID, otherRoom)
	req.Empty(membership.RoomsOf(userID))
}

func Test_Membership_ReplaceRoom(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	roomID := uuid.New()
	stays := uuid.New()
	leaves := uuid.New()
	joins := uuid.New()

	membership.Subscribe(stays, roomID)
	membership.Subscribe(leaves, roomID)

	membership.ReplaceRoom(roomID, []uuid.UUID{stays, joins})

	req.ElementsMatch([]uuid.UUID{stays, joins}, membership.MembersOf(roomID))
	req.False(membership.IsMember(leaves, roomID))
	req.Empty(membership.RoomsOf(leaves))
}

func Test_Membership_DropRoom(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	roomID := uuid.New()
	otherRoom := uuid.New()
	a := uuid.New()
	b := uuid.New()

	membership.Subscribe(a, roomID)
	membership.Subscribe(b, roomID)
	membership.Subscribe(a, otherRoom)

	membership.DropRoom(roomID)

	req.Empty(membership.MembersOf(roomID))
	req.Empty(membership.RoomsOf(b))
	req.Equal([]uuid.UUID{otherRoom}, membership.RoomsOf(a))
}
