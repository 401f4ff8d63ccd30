package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T, rooms *RoomRepository) (domain.Room, uuid.UUID, uuid.UUID) {
	t.Helper()
	a := uuid.New()
	b := uuid.New()
	room, _, err := rooms.FindOrCreatePrivateRoom(a, b)
	require.NoError(t, err)
	return room, a, b
}

func Test_AppendMessage_Updates_Last_Message_Pointer(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	rooms := NewRoomRepository(db)
	repository := NewMessageRepository(db, slog.Default())
	room, a, _ := newTestRoom(t, rooms)

	message, err := repository.AppendMessage(domain.Message{
		Content:  "premier message",
		Sender:   a,
		ChatRoom: room.ID,
		Kind:     domain.KindText,
	})
	req.NoError(err)
	req.NotEqual(uuid.Nil, message.ID)

	fetched, err := rooms.GetRoom(room.ID)
	req.NoError(err)
	req.NotNil(fetched.LastMessage)
	req.Equal(message.ID, *fetched.LastMessage)
}

func Test_AppendMessage_Unknown_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default())

	_, err := repository.AppendMessage(domain.Message{
		Content:  "lost",
		Sender:   uuid.New(),
		ChatRoom: uuid.New(),
		Kind:     domain.KindText,
	})
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_AppendMessage_Concurrent_Sends_All_Persist(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	rooms := NewRoomRepository(db)
	repository := NewMessageRepository(db, slog.Default())
	room, a, b := newTestRoom(t, rooms)

	// Both members flood the same room at once: every append races on the
	// room document through the last-message pointer update.
	const senders = 8
	var wg sync.WaitGroup
	errs := make([]error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := a
			if i%2 == 1 {
				sender = b
			}
			_, err := repository.AppendMessage(domain.Message{
				Content:  fmt.Sprintf("message %d", i),
				Sender:   sender,
				ChatRoom: room.ID,
				Kind:     domain.KindText,
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		req.NoError(err, "send %d", i)
	}

	messages, err := repository.ListMessages(room.ID, 1, 50)
	req.NoError(err)
	req.Len(messages, senders)

	fetched, err := rooms.GetRoom(room.ID)
	req.NoError(err)
	req.NotNil(fetched.LastMessage)
	req.Contains(
		lo.Map(messages, func(m domain.Message, _ int) uuid.UUID { return m.ID }),
		*fetched.LastMessage)
}

func Test_ListMessages_Chronological_Order_And_Pointer_Replay(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	rooms := NewRoomRepository(db)
	repository := NewMessageRepository(db, slog.Default())
	room, a, b := newTestRoom(t, rooms)

	at := time.Now().UTC()
	var last domain.Message
	for i := 0; i < 5; i++ {
		sender := a
		if i%2 == 1 {
			sender = b
		}
		message, err := repository.AppendMessage(domain.Message{
			Content:   fmt.Sprintf("message %d", i),
			Sender:    sender,
			ChatRoom:  room.ID,
			Kind:      domain.KindText,
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
		last = message
	}

	messages, err := repository.ListMessages(room.ID, 1, 50)
	req.NoError(err)
	req.Len(messages, 5)
	for i := 1; i < len(messages); i++ {
		req.False(messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}

	// Replaying history reconstructs the last-message pointer
	fetched, err := rooms.GetRoom(room.ID)
	req.NoError(err)
	req.Equal(messages[len(messages)-1].ID, *fetched.LastMessage)
	req.Equal(last.ID, *fetched.LastMessage)
}

func Test_ListMessages_Paging(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	rooms := NewRoomRepository(db)
	repository := NewMessageRepository(db, slog.Default())
	room, a, _ := newTestRoom(t, rooms)

	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := repository.AppendMessage(domain.Message{
			Content:   fmt.Sprintf("message %d", i),
			Sender:    a,
			ChatRoom:  room.ID,
			Kind:      domain.KindText,
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	// Page 1 holds the two newest messages, in chronological order
	page1, err := repository.ListMessages(room.ID, 1, 2)
	req.NoError(err)
	req.Equal([]string{"message 3", "message 4"},
		lo.Map(page1, func(m domain.Message, _ int) string { return m.Content }))

	page2, err := repository.ListMessages(room.ID, 2, 2)
	req.NoError(err)
	req.Equal([]string{"message 1", "message 2"},
		lo.Map(page2, func(m domain.Message, _ int) string { return m.Content }))

	page3, err := repository.ListMessages(room.ID, 3, 2)
	req.NoError(err)
	req.Len(page3, 1)
}

func Test_MarkRead_Skips_Own_Messages(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	rooms := NewRoomRepository(db)
	repository := NewMessageRepository(db, slog.Default())
	room, a, b := newTestRoom(t, rooms)

	at := time.Now().UTC()
	for i, sender := range []uuid.UUID{a, b, b} {
		_, err := repository.AppendMessage(domain.Message{
			Content:   "x",
			Sender:    sender,
			ChatRoom:  room.ID,
			Kind:      domain.KindText,
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	// When A reads the room, only B's messages flip
	count, err := repository.MarkRead(room.ID, a, at.Add(time.Minute))
	req.NoError(err)
	req.Equal(2, count)

	messages, err := repository.ListMessages(room.ID, 1, 50)
	req.NoError(err)
	for _, message := range messages {
		if message.Sender == a {
			req.False(message.IsRead)
			req.Nil(message.ReadAt)
		} else {
			req.True(message.IsRead)
			req.NotNil(message.ReadAt)
		}
	}

	// Marking again is a no-op
	count, err = repository.MarkRead(room.ID, a, at.Add(2*time.Minute))
	req.NoError(err)
	req.Zero(count)
}

func Test_DeleteRoomMessages_Cascade(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	rooms := NewRoomRepository(db)
	repository := NewMessageRepository(db, slog.Default())
	room, a, _ := newTestRoom(t, rooms)

	at := time.Now().UTC()
	var created []uuid.UUID
	for i := 0; i < 3; i++ {
		message, err := repository.AppendMessage(domain.Message{
			Content:   "bye",
			Sender:    a,
			ChatRoom:  room.ID,
			Kind:      domain.KindText,
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
		created = append(created, message.ID)
	}

	deleted, err := repository.DeleteRoomMessages(room.ID)
	req.NoError(err)
	req.ElementsMatch(created, deleted)

	messages, err := repository.ListMessages(room.ID, 1, 50)
	req.NoError(err)
	req.Empty(messages)

	// Idempotent
	deleted, err = repository.DeleteRoomMessages(room.ID)
	req.NoError(err)
	req.Empty(deleted)
}
