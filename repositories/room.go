//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"sync"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IRoomRepository interface {
	CreateRoom(room domain.Room) (domain.Room, error)
	GetRoom(id uuid.UUID) (domain.Room, error)
	RoomsForUser(userID uuid.UUID) ([]domain.Room, error)
	FindPrivateRoom(a, b uuid.UUID) (domain.Room, error)
	FindOrCreatePrivateRoom(a, b uuid.UUID) (domain.Room, bool, error)
	UpdateParticipants(roomID uuid.UUID, participants []uuid.UUID) (domain.Room, error)
	DeleteRoom(roomID uuid.UUID) error
}

type RoomRepository struct {
	db *badger.DB

	// One mutex per unordered user pair. Serializes the check-then-create
	// sequence of private room creation so two concurrent creators for the
	// same pair always resolve to a single room.
	pairLocks sync.Map
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) pairLock(a, b uuid.UUID) *sync.Mutex {
	mu, _ := r.pairLocks.LoadOrStore(domain.PairKey(a, b), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// readRoom / writeRoom are shared with the message repository so the
// last-message pointer update can ride the same transaction as a message
// append.
func readRoom(txn *badger.Txn, id uuid.UUID) (domain.Room, error) {
	var room domain.Room
	if err := getJSON(txn, roomKey(id), &room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func writeRoom(txn *badger.Txn, room domain.Room) error {
	return setJSON(txn, roomKey(room.ID), room)
}

// CreateRoom persists a room together with its membership index entries
// and, for private rooms, the unordered-pair index. A private room whose
// pair already has one fails with ErrRoomExists.
func (r *RoomRepository) CreateRoom(room domain.Room) (domain.Room, error) {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	room.Participants = lo.Uniq(room.Participants)

	private := !room.IsGroup && len(room.Participants) == 2
	if private {
		lock := r.pairLock(room.Participants[0], room.Participants[1])
		lock.Lock()
		defer lock.Unlock()
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if private {
			pairKey := pairIndexKey(room.Participants[0], room.Participants[1])
			if _, err := txn.Get(pairKey); err == nil {
				return errors.ErrRoomExists
			}
			if err := txn.Set(pairKey, []byte(room.ID.String())); err != nil {
				return err
			}
		}
		for _, p := range room.Participants {
			if err := txn.Set(userRoomKey(p, room.ID), nil); err != nil {
				return err
			}
		}
		return writeRoom(txn, room)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) GetRoom(id uuid.UUID) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = readRoom(txn, id)
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// RoomsForUser resolves the user's membership index entries to room
// documents.
func (r *RoomRepository) RoomsForUser(userID uuid.UUID) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := userRoomPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)

		var roomIDs []uuid.UUID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := string(it.Item().Key()[len(prefix):])
			id, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			roomIDs = append(roomIDs, id)
		}
		it.Close()

		for _, id := range roomIDs {
			room, err := readRoom(txn, id)
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *RoomRepository) FindPrivateRoom(a, b uuid.UUID) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairIndexKey(a, b))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrNotFound
			}
			return err
		}
		var roomID uuid.UUID
		if err := item.Value(func(val []byte) error {
			roomID, err = uuid.Parse(string(val))
			return err
		}); err != nil {
			return err
		}
		room, err = readRoom(txn, roomID)
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// FindOrCreatePrivateRoom resolves the single private room of an unordered
// pair, creating it on first use. The pair mutex makes the find-or-create
// atomic against concurrent resolutions of the same pair; the returned flag
// reports whether the room was created by this call.
func (r *RoomRepository) FindOrCreatePrivateRoom(a, b uuid.UUID) (domain.Room, bool, error) {
	lock := r.pairLock(a, b)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.FindPrivateRoom(a, b)
	if err == nil {
		return room, false, nil
	}
	if err != errors.ErrNotFound {
		return domain.Room{}, false, err
	}

	room = domain.Room{
		ID:           uuid.New(),
		Name:         domain.PrivateRoomName,
		IsGroup:      false,
		Participants: []uuid.UUID{a, b},
	}
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(pairIndexKey(a, b), []byte(room.ID.String())); err != nil {
			return err
		}
		if err := txn.Set(userRoomKey(a, room.ID), nil); err != nil {
			return err
		}
		if err := txn.Set(userRoomKey(b, room.ID), nil); err != nil {
			return err
		}
		return writeRoom(txn, room)
	})
	if err != nil {
		return domain.Room{}, false, err
	}
	return room, true, nil
}

// UpdateParticipants replaces a room's membership set and keeps the
// userroom index in sync within the same transaction.
func (r *RoomRepository) UpdateParticipants(roomID uuid.UUID, participants []uuid.UUID) (domain.Room, error) {
	participants = lo.Uniq(participants)
	var updated domain.Room
	err := runUpdate(r.db, func(txn *badger.Txn) error {
		room, err := readRoom(txn, roomID)
		if err != nil {
			return err
		}

		removed, _ := lo.Difference(room.Participants, participants)
		added, _ := lo.Difference(participants, room.Participants)
		for _, p := range removed {
			if err := txn.Delete(userRoomKey(p, roomID)); err != nil {
				return err
			}
		}
		for _, p := range added {
			if err := txn.Set(userRoomKey(p, roomID), nil); err != nil {
				return err
			}
		}

		room.Participants = participants
		room.UpdatedAt = time.Now().UTC()
		updated = room
		return writeRoom(txn, room)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return updated, nil
}

// DeleteRoom removes the room document and every index entry pointing at
// it in one transaction. Messages are cascaded separately (see
// MessageRepository.DeleteRoomMessages): once the room document is gone,
// leftover message keys are unreachable through any listing path, so a
// crash between the two steps is safe.
func (r *RoomRepository) DeleteRoom(roomID uuid.UUID) error {
	return runUpdate(r.db, func(txn *badger.Txn) error {
		room, err := readRoom(txn, roomID)
		if err != nil {
			return err
		}
		if !room.IsGroup && len(room.Participants) == 2 {
			if err := txn.Delete(pairIndexKey(room.Participants[0], room.Participants[1])); err != nil {
				return err
			}
		}
		for _, p := range room.Participants {
			if err := txn.Delete(userRoomKey(p, roomID)); err != nil {
				return err
			}
		}
		return txn.Delete(roomKey(roomID))
	})
}
