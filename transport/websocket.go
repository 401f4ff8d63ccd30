// Package transport exposes the hub over WebSocket: one authenticated
// connection per user, JSON event envelopes in both directions.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/hub"
	"chat-hub/repositories"
	"chat-hub/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Envelope is the inbound wire frame. Outbound frames use sink.Event,
// which has the same shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Server struct {
	log      *slog.Logger
	hub      *hub.Hub
	users    repositories.IUserRepository
	upgrader websocket.Upgrader
	sinkSize int
}

func NewServer(log *slog.Logger, h *hub.Hub, users repositories.IUserRepository, sinkSize int) *Server {
	return &Server{
		log:   log,
		hub:   h,
		users: users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients carry the token, not cookies; origins are not
			// restricted here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sinkSize: sinkSize,
	}
}

// Handler mounts the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// serveWS authenticates the request, upgrades it, and hands the connection
// to its read and write pumps. Authentication failures are rejected before
// the upgrade.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(r)
	if err != nil {
		s.log.Warn("Rejected connection", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	out := sink.NewChannelSink(s.log, s.sinkSize)
	s.hub.Connect(user, out)

	go s.writePump(conn, out)
	go s.readPump(conn, user, out)
}

// authenticate resolves the token from the Authorization header or the
// token query parameter and loads the account it names.
func (s *Server) authenticate(r *http.Request) (domain.User, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return domain.User{}, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return domain.User{}, errors.ErrUnauthenticated
	}
	return s.users.GetUser(userID)
}

// readPump owns the connection's read side and drives the hub. It exits on
// any read failure and tears the session down exactly once.
func (s *Server) readPump(conn *websocket.Conn, user domain.User, out *sink.ChannelSink) {
	defer func() {
		s.hub.Disconnect(user.ID, out)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var envelope Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Read failed", "user_id", user.ID, "error", err)
			}
			return
		}
		s.dispatch(user, envelope, out)
	}
}

// dispatch maps one inbound envelope to a hub operation. Failures are
// reported back on the offending connection only, as an error event
// carrying the wire kind.
func (s *Server) dispatch(user domain.User, envelope Envelope, out *sink.ChannelSink) {
	var err error
	switch envelope.Event {
	case hub.EventSendMessage:
		err = s.sendMessage(user, envelope.Data, out)
	case hub.EventTypingStart:
		err = s.typing(user, envelope.Data, true)
	case hub.EventTypingStop:
		err = s.typing(user, envelope.Data, false)
	case hub.EventJoinRoom:
		var payload hub.RoomPayload
		if payload, err = hub.DecodePayload[hub.RoomPayload](envelope.Data); err == nil {
			err = s.hub.JoinRoom(user, payload.ChatRoomID)
		}
	case hub.EventLeaveRoom:
		var payload hub.RoomPayload
		if payload, err = hub.DecodePayload[hub.RoomPayload](envelope.Data); err == nil {
			s.hub.LeaveRoom(user, payload.ChatRoomID)
		}
	case hub.EventCreateRoom:
		err = s.createRoom(user, envelope.Data, out)
	case hub.EventAddParticipants:
		err = s.addParticipants(user, envelope.Data, out)
	case hub.EventRemoveParticipant:
		err = s.removeParticipant(user, envelope.Data, out)
	case hub.EventDeleteRoom:
		var payload hub.RoomPayload
		if payload, err = hub.DecodePayload[hub.RoomPayload](envelope.Data); err == nil {
			err = s.hub.DeleteRoom(user, payload.ChatRoomID)
		}
	case hub.EventGetMessages:
		err = s.getMessages(user, envelope.Data, out)
	case hub.EventSearchMessages:
		err = s.searchMessages(user, envelope.Data, out)
	default:
		err = fmt.Errorf("%w: unknown event %q", errors.ErrInvalidMessage, envelope.Event)
	}

	if err != nil {
		s.log.Info("Operation failed",
			"user_id", user.ID, "event", envelope.Event, "kind", errors.Kind(err))
		out.Consume(sink.Event{
			Name: hub.EventError,
			Data: hub.ErrorEvent{Kind: errors.Kind(err), Message: err.Error()},
		})
	}
}

func (s *Server) sendMessage(user domain.User, data json.RawMessage, out *sink.ChannelSink) error {
	payload, err := hub.DecodePayload[hub.SendMessagePayload](data)
	if err != nil {
		return err
	}
	view, err := s.hub.SendMessage(user, payload)
	if err != nil {
		return err
	}
	out.Consume(sink.Event{Name: hub.EventMessageSent, Data: view})
	return nil
}

func (s *Server) typing(user domain.User, data json.RawMessage, started bool) error {
	payload, err := hub.DecodePayload[hub.RoomPayload](data)
	if err != nil {
		return err
	}
	return s.hub.Typing(user, payload.ChatRoomID, started)
}

func (s *Server) createRoom(user domain.User, data json.RawMessage, out *sink.ChannelSink) error {
	payload, err := hub.DecodePayload[hub.CreateRoomPayload](data)
	if err != nil {
		return err
	}
	view, _, err := s.hub.CreateRoom(user, payload)
	if err != nil {
		return err
	}
	out.Consume(sink.Event{Name: hub.EventRoomCreated, Data: hub.RoomEvent{ChatRoom: view}})
	return nil
}

func (s *Server) addParticipants(user domain.User, data json.RawMessage, out *sink.ChannelSink) error {
	payload, err := hub.DecodePayload[hub.AddParticipantsPayload](data)
	if err != nil {
		return err
	}
	view, err := s.hub.AddParticipants(user, payload)
	if err != nil {
		return err
	}
	out.Consume(sink.Event{Name: hub.EventRoomUpdated, Data: hub.RoomEvent{ChatRoom: view}})
	return nil
}

func (s *Server) removeParticipant(user domain.User, data json.RawMessage, out *sink.ChannelSink) error {
	payload, err := hub.DecodePayload[hub.RemoveParticipantPayload](data)
	if err != nil {
		return err
	}
	view, err := s.hub.RemoveParticipant(user, payload)
	if err != nil {
		return err
	}
	out.Consume(sink.Event{Name: hub.EventRoomUpdated, Data: hub.RoomEvent{ChatRoom: view}})
	return nil
}

func (s *Server) getMessages(user domain.User, data json.RawMessage, out *sink.ChannelSink) error {
	payload, err := hub.DecodePayload[hub.GetMessagesPayload](data)
	if err != nil {
		return err
	}
	history, err := s.hub.GetMessages(user, payload)
	if err != nil {
		return err
	}
	out.Consume(sink.Event{Name: hub.EventMessageHistory, Data: history})
	return nil
}

func (s *Server) searchMessages(user domain.User, data json.RawMessage, out *sink.ChannelSink) error {
	payload, err := hub.DecodePayload[hub.SearchMessagesPayload](data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := s.hub.SearchMessages(ctx, user, payload)
	if err != nil {
		return err
	}
	out.Consume(sink.Event{Name: hub.EventSearchResults, Data: results})
	return nil
}

// writePump drains the sink onto the socket and keeps the connection alive
// with pings. It exits when the sink is closed or a write fails.
func (s *Server) writePump(conn *websocket.Conn, out *sink.ChannelSink) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case event := <-out.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-out.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
