package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/sink"

	"github.com/google/uuid"
)

const defaultHistoryLimit = 50

// Hub wires presence, membership, routing and room lifecycle together. All
// methods are safe for concurrent use; one goroutine per connection calls
// into the hub directly.
type Hub struct {
	log        *slog.Logger
	presence   *Presence
	membership *Membership
	users      repositories.IUserRepository
	rooms      repositories.IRoomRepository
	messages   repositories.IMessageRepository
	search     repositories.ISearchRepository
	moderator  *moderation.Moderator
}

func New(
	log *slog.Logger,
	users repositories.IUserRepository,
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	search repositories.ISearchRepository,
	moderator *moderation.Moderator,
) *Hub {
	return &Hub{
		log:        log,
		presence:   NewPresence(),
		membership: NewMembership(),
		users:      users,
		rooms:      rooms,
		messages:   messages,
		search:     search,
		moderator:  moderator,
	}
}

// Connect registers the user's connection handle, closing any prior one,
// marks the user online and subscribes them to every room they belong to.
func (h *Hub) Connect(user domain.User, s sink.EventSink) {
	if prior := h.presence.Register(user.ID, s); prior != nil && prior != s {
		prior.Close()
		h.log.Info("Replaced existing session", "user_id", user.ID)
	}

	now := time.Now().UTC()
	if err := h.users.SetPresence(user.ID, true, now); err != nil {
		h.log.Error("Failed to persist online status", "user_id", user.ID, "error", err)
	}

	rooms, err := h.rooms.RoomsForUser(user.ID)
	if err != nil {
		h.log.Error("Failed to load room memberships", "user_id", user.ID, "error", err)
		return
	}
	for _, room := range rooms {
		h.membership.Subscribe(user.ID, room.ID)
	}
	h.log.Info("User connected", "user_id", user.ID, "username", user.Username, "rooms", len(rooms))
}

// Disconnect tears the session down: unregister, unsubscribe everywhere,
// persist the offline status and notify each room the user belonged to at
// disconnect time. A handle that was already replaced by a reconnect is
// ignored. Bookkeeping failures are logged, never fatal.
func (h *Hub) Disconnect(userID uuid.UUID, s sink.EventSink) {
	if !h.presence.Unregister(userID, s) {
		return
	}
	s.Close()

	roomIDs := h.membership.RoomsOf(userID)
	for _, roomID := range roomIDs {
		h.membership.Unsubscribe(userID, roomID)
	}

	lastSeen := time.Now().UTC()
	if err := h.users.SetPresence(userID, false, lastSeen); err != nil {
		h.log.Error("Failed to persist offline status", "user_id", userID, "error", err)
	}

	offline := sink.Event{
		Name: EventUserOffline,
		Data: PresenceEvent{UserID: userID, LastSeen: &lastSeen},
	}
	for _, roomID := range roomIDs {
		h.deliver(h.membership.MembersOf(roomID), &userID, offline)
	}
	h.log.Info("User disconnected", "user_id", userID, "rooms", len(roomIDs))
}

// Typing relays a typing indicator to the other subscribed members of the
// room. Indicators are fire-and-forget: nothing is persisted.
func (h *Hub) Typing(user domain.User, roomID uuid.UUID, started bool) error {
	if !h.membership.IsMember(user.ID, roomID) {
		// Index miss: fall back to the persisted membership.
		room, err := h.rooms.GetRoom(roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(user.ID) {
			return fmt.Errorf("%w: not a room member", errors.ErrForbidden)
		}
		h.membership.Subscribe(user.ID, roomID)
	}

	name := EventUserTyping
	if !started {
		name = EventUserStopTyping
	}
	h.deliver(h.membership.MembersOf(roomID), &user.ID, sink.Event{
		Name: name,
		Data: TypingEvent{UserID: user.ID, Username: user.Username, ChatRoomID: roomID},
	})
	return nil
}

// JoinRoom subscribes an existing member's connection to a room's delivery
// set and announces the join.
func (h *Hub) JoinRoom(user domain.User, roomID uuid.UUID) error {
	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(user.ID) {
		return fmt.Errorf("%w: not a room member", errors.ErrForbidden)
	}

	h.membership.Subscribe(user.ID, roomID)
	h.deliver(room.Participants, &user.ID, sink.Event{
		Name: EventUserJoined,
		Data: MemberEvent{UserID: user.ID, Username: user.Username, ChatRoomID: roomID},
	})
	return nil
}

// LeaveRoom drops the subscription without touching the persisted
// membership; the user still belongs to the room and can rejoin.
func (h *Hub) LeaveRoom(user domain.User, roomID uuid.UUID) {
	h.membership.Unsubscribe(user.ID, roomID)
	h.deliver(h.membership.MembersOf(roomID), &user.ID, sink.Event{
		Name: EventUserLeft,
		Data: MemberEvent{UserID: user.ID, Username: user.Username, ChatRoomID: roomID},
	})
}

// GetMessages returns one page of room history with sender profiles
// attached, and flags the other parties' messages as read.
func (h *Hub) GetMessages(user domain.User, payload GetMessagesPayload) (HistoryEvent, error) {
	room, err := h.rooms.GetRoom(payload.ChatRoomID)
	if err != nil {
		return HistoryEvent{}, err
	}
	if !room.HasParticipant(user.ID) {
		return HistoryEvent{}, fmt.Errorf("%w: not a room member", errors.ErrForbidden)
	}

	page := payload.Page
	if page < 1 {
		page = 1
	}
	limit := payload.Limit
	if limit < 1 {
		limit = defaultHistoryLimit
	}

	messages, err := h.messages.ListMessages(room.ID, page, limit)
	if err != nil {
		return HistoryEvent{}, err
	}
	if _, err := h.messages.MarkRead(room.ID, user.ID, time.Now().UTC()); err != nil {
		h.log.Error("Failed to mark messages read", "room_id", room.ID, "error", err)
	}

	return HistoryEvent{
		ChatRoomID: room.ID,
		Page:       page,
		Messages:   h.buildMessageViews(messages),
	}, nil
}

// SearchMessages runs a full-text query over one room the user belongs to.
func (h *Hub) SearchMessages(ctx context.Context, user domain.User, payload SearchMessagesPayload) (SearchResultsEvent, error) {
	room, err := h.rooms.GetRoom(payload.ChatRoomID)
	if err != nil {
		return SearchResultsEvent{}, err
	}
	if !room.HasParticipant(user.ID) {
		return SearchResultsEvent{}, fmt.Errorf("%w: not a room member", errors.ErrForbidden)
	}

	limit := payload.Limit
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	hits, err := h.search.SearchMessages(ctx, room.ID, payload.Terms, limit)
	if err != nil {
		return SearchResultsEvent{}, err
	}
	return SearchResultsEvent{ChatRoomID: room.ID, Terms: payload.Terms, Hits: hits}, nil
}

// deliver pushes one event to every connected user in the list, skipping
// exclude. Slow consumers drop events in their own sink, never here.
func (h *Hub) deliver(userIDs []uuid.UUID, exclude *uuid.UUID, event sink.Event) {
	for _, id := range userIDs {
		if exclude != nil && id == *exclude {
			continue
		}
		handle, ok := h.presence.HandleFor(id)
		if !ok {
			continue
		}
		if !handle.Consume(event) {
			h.log.Debug("Delivery skipped", "user_id", id, "event", event.Name)
		}
	}
}

// profilesFor resolves public profiles for a set of user IDs, skipping the
// ones that no longer resolve.
func (h *Hub) profilesFor(ids []uuid.UUID) map[uuid.UUID]domain.PublicProfile {
	profiles := make(map[uuid.UUID]domain.PublicProfile, len(ids))
	for _, id := range ids {
		if _, done := profiles[id]; done {
			continue
		}
		user, err := h.users.GetUser(id)
		if err != nil {
			h.log.Warn("Unresolvable participant", "user_id", id, "error", err)
			continue
		}
		profiles[id] = user.Public()
	}
	return profiles
}

func (h *Hub) buildRoomView(room domain.Room) RoomView {
	profiles := h.profilesFor(room.Participants)
	view := RoomView{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		IsGroup:     room.IsGroup,
		Avatar:      room.Avatar,
		LastMessage: room.LastMessage,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
	view.Participants = make([]domain.PublicProfile, 0, len(room.Participants))
	for _, id := range room.Participants {
		if profile, ok := profiles[id]; ok {
			view.Participants = append(view.Participants, profile)
		}
	}
	if room.Admin != nil {
		if profile, ok := profiles[*room.Admin]; ok {
			view.Admin = &profile
		}
	}
	return view
}

func newMessageView(message domain.Message, sender domain.PublicProfile) MessageView {
	return MessageView{
		ID:          message.ID,
		Content:     message.Content,
		Sender:      sender,
		Receiver:    message.Receiver,
		ChatRoom:    message.ChatRoom,
		MessageType: message.Kind,
		FileURL:     message.FileURL,
		IsRead:      message.IsRead,
		ReadAt:      message.ReadAt,
		CreatedAt:   message.CreatedAt,
	}
}

func (h *Hub) buildMessageViews(messages []domain.Message) []MessageView {
	senders := make([]uuid.UUID, 0, len(messages))
	for _, message := range messages {
		senders = append(senders, message.Sender)
	}
	profiles := h.profilesFor(senders)

	views := make([]MessageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, newMessageView(message, profiles[message.Sender]))
	}
	return views
}
