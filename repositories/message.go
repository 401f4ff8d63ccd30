//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"log/slog"
	"time"

	"chat-hub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// deleteChunkSize bounds how many message keys are removed per transaction
// during a cascade, staying well under Badger's transaction limits.
const deleteChunkSize = 1000

type IMessageRepository interface {
	AppendMessage(message domain.Message) (domain.Message, error)
	ListMessages(roomID uuid.UUID, page, limit int) ([]domain.Message, error)
	MarkRead(roomID, exceptSender uuid.UUID, at time.Time) (int, error)
	DeleteRoomMessages(roomID uuid.UUID) ([]uuid.UUID, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// AppendMessage persists a message and advances the room's last-message
// pointer in a single transaction: no reader ever observes the pointer
// without the message, or the message without the pointer. Concurrent
// sends to the same room race on the room document; the conflict retry
// makes sure no send is ever lost to the race.
func (m *MessageRepository) AppendMessage(message domain.Message) (domain.Message, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	err := runUpdate(m.db, func(txn *badger.Txn) error {
		room, err := readRoom(txn, message.ChatRoom)
		if err != nil {
			return err
		}
		if err := setJSON(txn, messageKey(message.ChatRoom, message.CreatedAt, message.ID), message); err != nil {
			return err
		}
		room.LastMessage = &message.ID
		room.UpdatedAt = message.CreatedAt
		return writeRoom(txn, room)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// ListMessages returns one page of a room's history in non-decreasing
// creation order. Pages count from the newest message backwards (page 1 is
// the most recent), each page itself chronological, matching how clients
// render history.
func (m *MessageRepository) ListMessages(roomID uuid.UUID, page, limit int) ([]domain.Message, error) {
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * limit

	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(roomID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts past the newest possible key.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)

		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if limit > 0 && len(messages) == limit {
				break
			}
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest-first on disk scan, chronological for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead flags every unread message in the room not sent by exceptSender
// and returns how many were updated.
func (m *MessageRepository) MarkRead(roomID, exceptSender uuid.UUID, at time.Time) (int, error) {
	count := 0
	err := runUpdate(m.db, func(txn *badger.Txn) error {
		count = 0
		prefix := messagePrefix(roomID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)

		type pending struct {
			key     []byte
			message domain.Message
		}
		var updates []pending
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var message domain.Message
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				it.Close()
				return err
			}
			if message.IsRead || message.Sender == exceptSender {
				continue
			}
			updates = append(updates, pending{key: item.KeyCopy(nil), message: message})
		}
		it.Close()

		for _, u := range updates {
			u.message.IsRead = true
			readAt := at
			u.message.ReadAt = &readAt
			if err := setJSON(txn, u.key, u.message); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteRoomMessages removes a room's messages in chunks and returns the
// deleted message IDs so callers can clean secondary indexes. It is
// idempotent: rerunning after a partial failure simply deletes what is
// left.
func (m *MessageRepository) DeleteRoomMessages(roomID uuid.UUID) ([]uuid.UUID, error) {
	var keys [][]byte
	var ids []uuid.UUID

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(roomID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			keys = append(keys, key)
			// Key layout is msg:{room}:{nanos}:{uuid}
			raw := string(key)
			if id, err := uuid.Parse(raw[len(raw)-36:]); err == nil {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(keys); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		err := runUpdate(m.db, func(txn *badger.Txn) error {
			for _, key := range keys[start:end] {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if len(ids) > 0 {
		m.log.Debug("Cascaded message delete", "room_id", roomID, "count", len(ids))
	}
	return ids, nil
}
