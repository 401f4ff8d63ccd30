package test

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/hub"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/transport"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type env struct {
	cfg    Config
	server *httptest.Server
	users  repositories.IUserRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	req := require.New(t)

	cfg, err := LoadConfig()
	req.NoError(err)

	log := slog.Default()
	// Reduced to 16 Mo for testing (avoid 2 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	words, err := moderation.LoadCensoredWords()
	req.NoError(err)
	moderator, err := moderation.NewModerator(words, '*')
	req.NoError(err)

	users := repositories.NewUserRepository(db)
	h := hub.New(log, users,
		repositories.NewRoomRepository(db),
		repositories.NewMessageRepository(db, log),
		repositories.NewSearchRepository(writer, log),
		&moderator)

	server := httptest.NewServer(transport.NewServer(log, h, users, cfg.SinkSize).Handler())
	t.Cleanup(server.Close)

	return &env{cfg: cfg, server: server, users: users}
}

func (e *env) newUser(t *testing.T, username string) (domain.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("secret-" + username)
	require.NoError(t, err)
	user, err := e.users.CreateUser(domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Settings:     domain.DefaultSettings(),
	})
	require.NoError(t, err)
	token, err := auth.GenerateToken(user.ID.String(), user.Username, time.Hour)
	require.NoError(t, err)
	return user, token
}

func (e *env) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{Event: event, Data: raw}))
}

// readEvent blocks until the named event arrives, skipping unrelated ones.
func (e *env) readEvent(t *testing.T, conn *websocket.Conn, name string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(e.cfg.ReadTimeout)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var frame envelope
		require.NoError(t, conn.ReadJSON(&frame), "waiting for %q", name)
		if frame.Event == name {
			return frame.Data
		}
	}
}

func Test_Handshake_Rejects_Bad_Token(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(401, resp.StatusCode)
	_ = resp.Body.Close()
}

func Test_Direct_Message_Round_Trip(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice, aliceToken := e.newUser(t, "alice")
	bob, bobToken := e.newUser(t, "bob")

	aliceConn := e.dial(t, aliceToken)
	bobConn := e.dial(t, bobToken)

	send(t, aliceConn, "send_message", map[string]any{
		"content":     "bonjour bob",
		"receiver_id": bob.ID,
	})

	// Bob first learns about the fresh private room, then gets the message
	var room hub.RoomEvent
	req.NoError(json.Unmarshal(e.readEvent(t, bobConn, "new_chat_room"), &room))
	req.False(room.ChatRoom.IsGroup)

	var received hub.MessageView
	req.NoError(json.Unmarshal(e.readEvent(t, bobConn, "receive_message"), &received))
	req.Equal("bonjour bob", received.Content)
	req.Equal(alice.ID, received.Sender.ID)
	req.Equal(room.ChatRoom.ID, received.ChatRoom)

	// Alice gets her delivery acknowledgment
	var ack hub.MessageView
	req.NoError(json.Unmarshal(e.readEvent(t, aliceConn, "message_sent"), &ack))
	req.Equal(received.ID, ack.ID)
}

func Test_Group_Room_Lifecycle_Over_Wire(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	_, aliceToken := e.newUser(t, "alice")
	bob, bobToken := e.newUser(t, "bob")

	aliceConn := e.dial(t, aliceToken)
	bobConn := e.dial(t, bobToken)

	send(t, aliceConn, "create_chat_room", map[string]any{
		"name":         "ops",
		"is_group":     true,
		"participants": []uuid.UUID{bob.ID},
	})

	var created hub.RoomEvent
	req.NoError(json.Unmarshal(e.readEvent(t, aliceConn, "chat_room_created"), &created))
	req.Equal("ops", created.ChatRoom.Name)
	req.NoError(json.Unmarshal(e.readEvent(t, bobConn, "new_chat_room"), &created))

	roomID := created.ChatRoom.ID
	send(t, bobConn, "typing_start", map[string]any{"chat_room_id": roomID})
	var typing hub.TypingEvent
	req.NoError(json.Unmarshal(e.readEvent(t, aliceConn, "user_typing"), &typing))
	req.Equal(bob.ID, typing.UserID)
	req.Equal("bob", typing.Username)

	send(t, bobConn, "send_message", map[string]any{
		"content":      "all green",
		"chat_room_id": roomID,
	})
	e.readEvent(t, aliceConn, "receive_message")

	// History replays with sender profiles attached
	send(t, aliceConn, "get_messages", map[string]any{"chat_room_id": roomID})
	var history hub.HistoryEvent
	req.NoError(json.Unmarshal(e.readEvent(t, aliceConn, "message_history"), &history))
	req.Len(history.Messages, 1)
	req.Equal("all green", history.Messages[0].Content)
	req.Equal("bob", history.Messages[0].Sender.Username)

	// Teardown cascades and is announced to every member
	send(t, aliceConn, "delete_chat_room", map[string]any{"chat_room_id": roomID})
	var deleted hub.RoomDeletedEvent
	req.NoError(json.Unmarshal(e.readEvent(t, bobConn, "chat_room_deleted"), &deleted))
	req.Equal(roomID, deleted.ChatRoomID)
}

func Test_Error_Events_Carry_Wire_Kind(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	_, aliceToken := e.newUser(t, "alice")
	aliceConn := e.dial(t, aliceToken)

	// Unknown event name
	send(t, aliceConn, "teleport", map[string]any{})
	var wireErr hub.ErrorEvent
	req.NoError(json.Unmarshal(e.readEvent(t, aliceConn, "error"), &wireErr))
	req.Equal("InvalidMessage", wireErr.Kind)

	// Operating on a room that does not exist
	send(t, aliceConn, "get_messages", map[string]any{"chat_room_id": uuid.New()})
	req.NoError(json.Unmarshal(e.readEvent(t, aliceConn, "error"), &wireErr))
	req.Equal("NotFound", wireErr.Kind)
}

func Test_Offline_Member_Catches_Up_Through_History(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	alice, aliceToken := e.newUser(t, "alice")
	bob, bobToken := e.newUser(t, "bob")

	aliceConn := e.dial(t, aliceToken)

	// Bob is offline while alice writes to him
	send(t, aliceConn, "send_message", map[string]any{
		"content":     "read this later",
		"receiver_id": bob.ID,
	})
	var ack hub.MessageView
	req.NoError(json.Unmarshal(e.readEvent(t, aliceConn, "message_sent"), &ack))

	bobConn := e.dial(t, bobToken)
	send(t, bobConn, "get_messages", map[string]any{"chat_room_id": ack.ChatRoom})
	var history hub.HistoryEvent
	req.NoError(json.Unmarshal(e.readEvent(t, bobConn, "message_history"), &history))
	req.Len(history.Messages, 1)
	req.Equal("read this later", history.Messages[0].Content)
	req.Equal(alice.ID, history.Messages[0].Sender.ID)
}
