package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key layout. Message keys embed a 19-digit zero-padded nanosecond
// timestamp so a prefix scan yields chronological order, with the UUID as
// a tiebreaker when two messages land on the same nanosecond.
func userKey(id uuid.UUID) []byte {
	return []byte("user:" + id.String())
}

func usernameKey(username string) []byte {
	return []byte("username:" + strings.ToLower(username))
}

func roomKey(id uuid.UUID) []byte {
	return []byte("room:" + id.String())
}

func pairIndexKey(a, b uuid.UUID) []byte {
	return []byte("pair:" + domain.PairKey(a, b))
}

func userRoomKey(userID, roomID uuid.UUID) []byte {
	return []byte("userroom:" + userID.String() + ":" + roomID.String())
}

func userRoomPrefix(userID uuid.UUID) []byte {
	return []byte("userroom:" + userID.String() + ":")
}

func messageKey(roomID uuid.UUID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", roomID, at.UnixNano(), id))
}

func messagePrefix(roomID uuid.UUID) []byte {
	return []byte("msg:" + roomID.String() + ":")
}

// maxTxnRetries bounds the retry loop of runUpdate. A transaction only
// aborts with ErrConflict because another one committed, so every retry
// round makes progress; the bound exists to turn a pathological pile-up
// into an error instead of a spin.
const maxTxnRetries = 16

// runUpdate runs an update transaction, retrying when Badger's optimistic
// conflict detection aborts it. Two members writing the same room document
// at once is the normal chat workload, not a failure; the closure must be
// safe to re-run from scratch.
func runUpdate(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
	return err
}

// getJSON loads and decodes a document, mapping a missing key to the
// domain-level not-found error.
func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return errors.ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}
