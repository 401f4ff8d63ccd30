package domain

import (
	"time"

	"chat-hub/errors"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
	KindVideo MessageKind = "video"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindVideo:
		return true
	}
	return false
}

// Message represents an immutable chat event. Only the read flag and its
// timestamp may change after creation.
//
// Receiver is informational: every message is resolved to a room at write
// time and routed by ChatRoom alone.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	Content   string      `json:"content"`
	Sender    uuid.UUID   `json:"sender"`
	Receiver  *uuid.UUID  `json:"receiver,omitempty"`
	ChatRoom  uuid.UUID   `json:"chat_room"`
	Kind      MessageKind `json:"message_type"`
	FileURL   string      `json:"file_url,omitempty"`
	IsRead    bool        `json:"is_read"`
	ReadAt    *time.Time  `json:"read_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate enforces the content rules of the Validating step: a text
// message needs a body unless it carries a file reference.
func (m Message) Validate() error {
	if !m.Kind.Valid() {
		return errors.ErrInvalidMessage
	}
	if m.Content == "" && m.Kind == KindText && m.FileURL == "" {
		return errors.ErrInvalidMessage
	}
	return nil
}
