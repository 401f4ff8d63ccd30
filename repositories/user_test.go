package repositories

import (
	"testing"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_CreateUser_And_Get(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	created, err := repository.CreateUser(domain.User{
		Username: "alice",
		Email:    "alice@example.com",
		Settings: domain.DefaultSettings(),
	})
	req.NoError(err)
	req.NotEqual(uuid.Nil, created.ID)

	fetched, err := repository.GetUser(created.ID)
	req.NoError(err)
	req.Equal(created, fetched)

	byName, err := repository.GetUserByUsername("Alice")
	req.NoError(err)
	req.Equal(created.ID, byName.ID)
}

func Test_CreateUser_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser(domain.User{Username: "bob"})
	req.NoError(err)

	_, err = repository.CreateUser(domain.User{Username: "bob"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_GetUser_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUser(uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repository.GetUserByUsername("nobody")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_SetPresence(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	created, err := repository.CreateUser(domain.User{Username: "clara"})
	req.NoError(err)

	// When the user connects
	at := time.Now().UTC().Truncate(time.Millisecond)
	req.NoError(repository.SetPresence(created.ID, true, at))

	fetched, err := repository.GetUser(created.ID)
	req.NoError(err)
	req.True(fetched.IsOnline)
	req.Equal(at, fetched.LastSeen)

	// And disconnects
	later := at.Add(time.Minute)
	req.NoError(repository.SetPresence(created.ID, false, later))

	fetched, err = repository.GetUser(created.ID)
	req.NoError(err)
	req.False(fetched.IsOnline)
	req.Equal(later, fetched.LastSeen)
}
