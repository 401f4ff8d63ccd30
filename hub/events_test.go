package hub

import (
	"encoding/json"
	"testing"

	"chat-hub/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_DecodePayload(t *testing.T) {
	req := require.New(t)
	roomID := uuid.New()

	payload, err := DecodePayload[GetMessagesPayload](json.RawMessage(
		`{"chat_room_id":"` + roomID.String() + `","page":2,"limit":20}`))
	req.NoError(err)
	req.Equal(roomID, payload.ChatRoomID)
	req.Equal(2, payload.Page)
	req.Equal(20, payload.Limit)
}

func Test_DecodePayload_Failures(t *testing.T) {
	req := require.New(t)

	// Missing payload
	_, err := DecodePayload[RoomPayload](nil)
	req.ErrorIs(err, errors.ErrInvalidMessage)

	// Malformed JSON
	_, err = DecodePayload[RoomPayload](json.RawMessage(`{`))
	req.ErrorIs(err, errors.ErrInvalidMessage)

	// Validation: the room ID is required
	_, err = DecodePayload[RoomPayload](json.RawMessage(`{}`))
	req.ErrorIs(err, errors.ErrInvalidMessage)

	// Validation: page limit is capped
	_, err = DecodePayload[GetMessagesPayload](json.RawMessage(
		`{"chat_room_id":"` + uuid.NewString() + `","limit":1000}`))
	req.ErrorIs(err, errors.ErrInvalidMessage)

	// Validation: unknown message type
	_, err = DecodePayload[SendMessagePayload](json.RawMessage(
		`{"content":"x","message_type":"carrier-pigeon"}`))
	req.ErrorIs(err, errors.ErrInvalidMessage)
}
