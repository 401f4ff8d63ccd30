package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Inbound event names, as sent by clients.
const (
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventJoinRoom          = "join_chat_room"
	EventLeaveRoom         = "leave_chat_room"
	EventCreateRoom        = "create_chat_room"
	EventAddParticipants   = "add_participants"
	EventRemoveParticipant = "remove_participant"
	EventDeleteRoom        = "delete_chat_room"
	EventGetMessages       = "get_messages"
	EventSearchMessages    = "search_messages"
)

// Outbound event names, as pushed to clients.
const (
	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventRoomCreated    = "chat_room_created"
	EventNewRoom        = "new_chat_room"
	EventRoomUpdated    = "room_updated"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserOffline    = "user_offline"
	EventRoomDeleted    = "chat_room_deleted"
	EventMessageHistory = "message_history"
	EventSearchResults  = "search_results"
	EventError          = "error"
)

var validate = validator.New()

// DecodePayload unmarshals and validates an inbound payload. Every failure
// collapses to ErrInvalidMessage so the wire error stays uniform.
func DecodePayload[T any](data json.RawMessage) (T, error) {
	var payload T
	if len(data) == 0 {
		return payload, fmt.Errorf("%w: missing payload", errors.ErrInvalidMessage)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	if err := validate.Struct(&payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	return payload, nil
}

type SendMessagePayload struct {
	Content     string     `json:"content"`
	ReceiverID  *uuid.UUID `json:"receiver_id,omitempty"`
	ChatRoomID  *uuid.UUID `json:"chat_room_id,omitempty"`
	MessageType string     `json:"message_type" validate:"omitempty,oneof=text image file video"`
	FileURL     string     `json:"file_url,omitempty" validate:"omitempty,url"`
}

type RoomPayload struct {
	ChatRoomID uuid.UUID `json:"chat_room_id" validate:"required"`
}

type CreateRoomPayload struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Participants []uuid.UUID `json:"participants" validate:"required,min=1"`
	IsGroup      bool        `json:"is_group"`
	Avatar       string      `json:"avatar,omitempty" validate:"omitempty,url"`
}

type AddParticipantsPayload struct {
	ChatRoomID     uuid.UUID   `json:"chat_room_id" validate:"required"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=1"`
}

type RemoveParticipantPayload struct {
	ChatRoomID    uuid.UUID `json:"chat_room_id" validate:"required"`
	ParticipantID uuid.UUID `json:"participant_id" validate:"required"`
}

type GetMessagesPayload struct {
	ChatRoomID uuid.UUID `json:"chat_room_id" validate:"required"`
	Page       int       `json:"page" validate:"gte=0"`
	Limit      int       `json:"limit" validate:"gte=0,lte=100"`
}

type SearchMessagesPayload struct {
	ChatRoomID uuid.UUID `json:"chat_room_id" validate:"required"`
	Terms      string    `json:"terms" validate:"required"`
	Limit      int       `json:"limit" validate:"gte=0,lte=100"`
}

// MessageView is a message enriched with its sender's public profile, the
// shape clients render directly.
type MessageView struct {
	ID          uuid.UUID            `json:"id"`
	Content     string               `json:"content"`
	Sender      domain.PublicProfile `json:"sender"`
	Receiver    *uuid.UUID           `json:"receiver,omitempty"`
	ChatRoom    uuid.UUID            `json:"chat_room"`
	MessageType domain.MessageKind   `json:"message_type"`
	FileURL     string               `json:"file_url,omitempty"`
	IsRead      bool                 `json:"is_read"`
	ReadAt      *time.Time           `json:"read_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// RoomView expands a room's participant IDs into public profiles.
type RoomView struct {
	ID           uuid.UUID              `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	IsGroup      bool                   `json:"is_group"`
	Participants []domain.PublicProfile `json:"participants"`
	Admin        *domain.PublicProfile  `json:"admin,omitempty"`
	Avatar       string                 `json:"avatar,omitempty"`
	LastMessage  *uuid.UUID             `json:"last_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type TypingEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	ChatRoomID uuid.UUID `json:"chat_room_id"`
}

type PresenceEvent struct {
	UserID   uuid.UUID  `json:"user_id"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type RoomEvent struct {
	ChatRoom RoomView `json:"chat_room"`
}

type MemberEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	ChatRoomID uuid.UUID `json:"chat_room_id"`
}

type RoomDeletedEvent struct {
	ChatRoomID uuid.UUID `json:"chat_room_id"`
}

type HistoryEvent struct {
	ChatRoomID uuid.UUID     `json:"chat_room_id"`
	Page       int           `json:"page"`
	Messages   []MessageView `json:"messages"`
}

type SearchResultsEvent struct {
	ChatRoomID uuid.UUID                `json:"chat_room_id"`
	Terms      string                   `json:"terms"`
	Hits       []repositories.SearchHit `json:"hits"`
}

// ErrorEvent is the uniform failure surface pushed back on the offending
// connection. Kind comes from errors.Kind.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
