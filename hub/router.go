package hub

import (
	"fmt"

	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/sink"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// SendMessage runs the full routing pipeline: validate, resolve the target
// room, censor, persist, then fan out to the room's current members. The
// returned view doubles as the sender's delivery acknowledgment.
func (h *Hub) SendMessage(sender domain.User, payload SendMessagePayload) (MessageView, error) {
	if (payload.ReceiverID == nil) == (payload.ChatRoomID == nil) {
		return MessageView{}, fmt.Errorf("%w: exactly one of receiver_id and chat_room_id is required", errors.ErrInvalidMessage)
	}

	message := domain.Message{
		Content:  payload.Content,
		Sender:   sender.ID,
		Receiver: payload.ReceiverID,
		Kind:     domain.MessageKind(payload.MessageType),
		FileURL:  payload.FileURL,
	}
	if message.Kind == "" {
		message.Kind = domain.KindText
	}
	if err := message.Validate(); err != nil {
		return MessageView{}, err
	}

	room, err := h.resolveTarget(sender, payload)
	if err != nil {
		return MessageView{}, err
	}
	message.ChatRoom = room.ID

	message.Content = h.censor(sender, message.Content)

	message, err = h.messages.AppendMessage(message)
	if err != nil {
		return MessageView{}, err
	}
	if err := h.search.IndexMessage(message); err != nil {
		h.log.Error("Failed to index message", "message_id", message.ID, "error", err)
	}

	view := newMessageView(message, sender.Public())

	// Fan-out uses the persisted membership loaded during resolution: a
	// member removed since their last subscription never hears the message.
	h.deliver(room.Participants, nil, sink.Event{Name: EventReceiveMessage, Data: view})
	return view, nil
}

// resolveTarget maps the payload to the destination room. A receiver target
// resolves the pair's private room, creating it on first contact; a room
// target is checked against the persisted membership.
func (h *Hub) resolveTarget(sender domain.User, payload SendMessagePayload) (domain.Room, error) {
	if payload.ReceiverID != nil {
		receiverID := *payload.ReceiverID
		if receiverID == sender.ID {
			return domain.Room{}, fmt.Errorf("%w: cannot message yourself", errors.ErrInvalidMessage)
		}
		receiver, err := h.users.GetUser(receiverID)
		if err != nil {
			return domain.Room{}, err
		}

		room, created, err := h.rooms.FindOrCreatePrivateRoom(sender.ID, receiver.ID)
		if err != nil {
			return domain.Room{}, err
		}
		if created {
			h.membership.Subscribe(sender.ID, room.ID)
			if h.presence.IsOnline(receiver.ID) {
				h.membership.Subscribe(receiver.ID, room.ID)
				h.deliver([]uuid.UUID{receiver.ID}, nil, sink.Event{
					Name: EventNewRoom,
					Data: RoomEvent{ChatRoom: h.buildRoomView(room)},
				})
			}
		}
		return room, nil
	}

	room, err := h.rooms.GetRoom(*payload.ChatRoomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.HasParticipant(sender.ID) {
		return domain.Room{}, fmt.Errorf("%w: not a room member", errors.ErrForbidden)
	}
	return room, nil
}

// censor rewrites flagged words and logs the incident with the detected
// language.
func (h *Hub) censor(sender domain.User, content string) string {
	sanitized, found := h.moderator.Censor(content)
	if len(found) == 0 {
		return content
	}
	info := whatlanggo.Detect(content)
	h.log.Warn("Censored words in message",
		"user_id", sender.ID,
		"username", sender.Username,
		"lang", info.Lang.String(),
		"words", len(found),
	)
	return sanitized
}
