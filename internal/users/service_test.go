package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	users     map[int64]User
	getErr    error
	insertErr error
	lostRace  bool
	inserts   int
	updates   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]User)}
}

func (f *fakeRepo) GetUser(_ context.Context, telegramID int64) (User, error) {
	if f.getErr != nil {
		return User{}, f.getErr
	}
	u, ok := f.users[telegramID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) Insert(_ context.Context, p Profile, status Status) (User, error) {
	f.inserts++
	if f.lostRace {
		f.users[p.TelegramID] = User{TelegramID: p.TelegramID, Status: StatusNew}
		return User{}, ErrAlreadyExists
	}
	if f.insertErr != nil {
		return User{}, f.insertErr
	}
	u := User{TelegramID: p.TelegramID, Username: p.Username, FirstName: p.FirstName, LastName: p.LastName, Status: status}
	f.users[p.TelegramID] = u
	return u, nil
}

func (f *fakeRepo) UpdateProfile(_ context.Context, p Profile, status Status) (User, error) {
	f.updates++
	u, ok := f.users[p.TelegramID]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Username, u.FirstName, u.LastName, u.Status = p.Username, p.FirstName, p.LastName, status
	f.users[p.TelegramID] = u
	return u, nil
}

func (f *fakeRepo) Register(_ context.Context, telegramID int64, email, phone string) (User, error) {
	u, ok := f.users[telegramID]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Email = nullString(email)
	u.Phone = nullString(phone)
	u.Status = StatusRegistered
	f.users[telegramID] = u
	return u, nil
}

func TestWelcomeInsertsOnFirstContact(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	u, err := svc.Welcome(context.Background(), Profile{TelegramID: 7, Username: "alice", FirstName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, u.Status)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, "alice", repo.users[7].Username)
}

func TestWelcomeMarksReturned(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = User{TelegramID: 7, Username: "alice", Status: StatusNew}
	svc := NewService(repo)

	u, err := svc.Welcome(context.Background(), Profile{TelegramID: 7, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, u.Status)
	assert.Equal(t, 0, repo.inserts)
}

func TestWelcomeKeepsRegisteredStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = User{TelegramID: 7, Username: "old", Status: StatusRegistered}
	svc := NewService(repo)

	u, err := svc.Welcome(context.Background(), Profile{TelegramID: 7, Username: "new"})
	require.NoError(t, err)
	assert.Equal(t, StatusRegistered, u.Status)
	assert.Equal(t, "new", u.Username)
	assert.Equal(t, 1, repo.updates)
}

func TestWelcomeSkipsUnchangedProfile(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = User{TelegramID: 7, Username: "alice", Status: StatusReturned}
	svc := NewService(repo)

	_, err := svc.Welcome(context.Background(), Profile{TelegramID: 7, Username: "alice"})
	require.NoError(t, err)
	assert.Zero(t, repo.updates)
}

func TestWelcomeInsertRace(t *testing.T) {
	repo := newFakeRepo()
	repo.lostRace = true
	svc := NewService(repo)

	u, err := svc.Welcome(context.Background(), Profile{TelegramID: 7})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, u.Status)
	assert.Equal(t, int64(7), u.TelegramID)
}

func TestWelcomeRepositoryFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewService(repo)

	_, err := svc.Welcome(context.Background(), Profile{TelegramID: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusReturned, StatusRegistered, StatusCancelled, StatusDeleted} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("PENDING").Valid())
}
