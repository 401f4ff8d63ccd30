package hub

import (
	"fmt"

	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/sink"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// CreateRoom creates a group room, or resolves the private room of a pair.
// The creator is always a participant; private creation is idempotent and
// the flag reports whether this call created the room. Other connected
// participants are notified with new_chat_room.
func (h *Hub) CreateRoom(creator domain.User, payload CreateRoomPayload) (RoomView, bool, error) {
	participants := lo.Uniq(append([]uuid.UUID{creator.ID}, payload.Participants...))
	if len(participants) < 2 {
		return RoomView{}, false, fmt.Errorf("%w: a room needs at least two participants", errors.ErrInvalidMessage)
	}

	var room domain.Room
	created := true
	if payload.IsGroup {
		if payload.Name == "" {
			return RoomView{}, false, fmt.Errorf("%w: a group room needs a name", errors.ErrInvalidMessage)
		}
		var err error
		room, err = h.rooms.CreateRoom(domain.Room{
			Name:         payload.Name,
			Description:  payload.Description,
			IsGroup:      true,
			Participants: participants,
			Admin:        &creator.ID,
			Avatar:       payload.Avatar,
		})
		if err != nil {
			return RoomView{}, false, err
		}
	} else {
		if len(participants) != 2 {
			return RoomView{}, false, fmt.Errorf("%w: a private room has exactly two participants", errors.ErrInvalidMessage)
		}
		var err error
		room, created, err = h.rooms.FindOrCreatePrivateRoom(participants[0], participants[1])
		if err != nil {
			return RoomView{}, false, err
		}
	}

	for _, id := range room.Participants {
		if h.presence.IsOnline(id) {
			h.membership.Subscribe(id, room.ID)
		}
	}

	view := h.buildRoomView(room)
	if created {
		h.deliver(room.Participants, &creator.ID, sink.Event{
			Name: EventNewRoom,
			Data: RoomEvent{ChatRoom: view},
		})
	}
	return view, created, nil
}

// AddParticipants extends a group room. Only the admin may add; adding only
// existing members is a no-op.
func (h *Hub) AddParticipants(actor domain.User, payload AddParticipantsPayload) (RoomView, error) {
	room, err := h.rooms.GetRoom(payload.ChatRoomID)
	if err != nil {
		return RoomView{}, err
	}
	if !room.HasParticipant(actor.ID) {
		return RoomView{}, fmt.Errorf("%w: not a room member", errors.ErrForbidden)
	}
	if !room.IsGroup || !room.IsAdmin(actor.ID) {
		return RoomView{}, fmt.Errorf("%w: only the group admin can add participants", errors.ErrForbidden)
	}

	added := lo.Filter(lo.Uniq(payload.ParticipantIDs), func(id uuid.UUID, _ int) bool {
		return !room.HasParticipant(id)
	})
	if len(added) == 0 {
		return RoomView{}, fmt.Errorf("%w: all listed users are already members", errors.ErrNoOp)
	}

	updated, err := h.rooms.UpdateParticipants(room.ID, append(room.Participants, added...))
	if err != nil {
		return RoomView{}, err
	}
	h.membership.ReplaceRoom(updated.ID, updated.Participants)

	view := h.buildRoomView(updated)
	h.deliver(room.Participants, &actor.ID, sink.Event{
		Name: EventRoomUpdated,
		Data: RoomEvent{ChatRoom: view},
	})
	h.deliver(added, nil, sink.Event{
		Name: EventNewRoom,
		Data: RoomEvent{ChatRoom: view},
	})
	return view, nil
}

// RemoveParticipant shrinks a group room. The admin may remove any
// non-admin member; a member may remove themselves. The admin cannot be
// removed. Removing an absent user is a no-op.
func (h *Hub) RemoveParticipant(actor domain.User, payload RemoveParticipantPayload) (RoomView, error) {
	room, err := h.rooms.GetRoom(payload.ChatRoomID)
	if err != nil {
		return RoomView{}, err
	}
	if !room.HasParticipant(actor.ID) {
		return RoomView{}, fmt.Errorf("%w: not a room member", errors.ErrForbidden)
	}
	if !room.IsGroup {
		return RoomView{}, fmt.Errorf("%w: private rooms have a fixed pair", errors.ErrForbidden)
	}

	target := payload.ParticipantID
	if room.IsAdmin(target) {
		return RoomView{}, fmt.Errorf("%w: the group admin cannot be removed", errors.ErrInvalidOperation)
	}
	if !room.IsAdmin(actor.ID) && actor.ID != target {
		return RoomView{}, fmt.Errorf("%w: only the group admin can remove others", errors.ErrForbidden)
	}
	if !room.HasParticipant(target) {
		return RoomView{}, fmt.Errorf("%w: user is not a member", errors.ErrNoOp)
	}

	remaining := lo.Filter(room.Participants, func(id uuid.UUID, _ int) bool {
		return id != target
	})
	updated, err := h.rooms.UpdateParticipants(room.ID, remaining)
	if err != nil {
		return RoomView{}, err
	}
	h.membership.ReplaceRoom(updated.ID, updated.Participants)

	if len(updated.Participants) == 0 {
		if err := h.destroyRoom(updated); err != nil {
			return RoomView{}, err
		}
		return h.buildRoomView(updated), nil
	}

	targetProfile, err := h.users.GetUser(target)
	username := ""
	if err == nil {
		username = targetProfile.Username
	}
	left := sink.Event{
		Name: EventUserLeft,
		Data: MemberEvent{UserID: target, Username: username, ChatRoomID: room.ID},
	}
	h.deliver(updated.Participants, nil, left)
	h.deliver([]uuid.UUID{target}, nil, left)
	return h.buildRoomView(updated), nil
}

// DeleteRoom tears a room down entirely. Group rooms are admin-only;
// either member may delete a private room. Non-members get NotFound so the
// room's existence is not leaked.
func (h *Hub) DeleteRoom(actor domain.User, roomID uuid.UUID) error {
	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(actor.ID) {
		return fmt.Errorf("%w: no such room", errors.ErrNotFound)
	}
	if room.IsGroup && !room.IsAdmin(actor.ID) {
		return fmt.Errorf("%w: only the group admin can delete the room", errors.ErrForbidden)
	}
	return h.destroyRoom(room)
}

// destroyRoom cascades: room document and indexes first, then messages,
// then the search index and the in-memory membership, then the
// notifications.
func (h *Hub) destroyRoom(room domain.Room) error {
	members := room.Participants

	if err := h.rooms.DeleteRoom(room.ID); err != nil {
		return err
	}
	deleted, err := h.messages.DeleteRoomMessages(room.ID)
	if err != nil {
		h.log.Error("Failed to cascade message delete", "room_id", room.ID, "error", err)
	} else if err := h.search.DeleteMessages(deleted); err != nil {
		h.log.Error("Failed to prune search index", "room_id", room.ID, "error", err)
	}
	h.membership.DropRoom(room.ID)

	h.deliver(members, nil, sink.Event{
		Name: EventRoomDeleted,
		Data: RoomDeletedEvent{ChatRoomID: room.ID},
	})
	h.log.Info("Room deleted", "room_id", room.ID, "messages", len(deleted))
	return nil
}
