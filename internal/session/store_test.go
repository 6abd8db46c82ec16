package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readpilot/readpilot/internal/api"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestSetAuthThenClearAuth(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	store := New(storage)
	require.False(t, store.IsAuthenticated())

	store.SetAuth("tok", api.User{ID: "u1", Username: "ada"})
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "tok", store.Token())
	token, ok, _ := storage.Get(KeyAccessToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
	_, ok, _ = storage.Get(KeyUser)
	assert.True(t, ok)

	store.ClearAuth()
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.User())
	_, ok, _ = storage.Get(KeyAccessToken)
	assert.False(t, ok)
	_, ok, _ = storage.Get(KeyUser)
	assert.False(t, ok)
}

func TestSetUserKeepsToken(t *testing.T) {
	t.Parallel()

	store := New(NewMemoryStorage())
	store.SetAuth("tok", api.User{ID: "u1", Username: "ada"})
	store.SetUser(api.User{ID: "u1", Username: "ada", DocumentsRead: 3})

	assert.Equal(t, "tok", store.Token())
	assert.Equal(t, 3, store.User().DocumentsRead)
	assert.True(t, store.IsAuthenticated())
}

func TestSetUserWithoutTokenIsNotAuthenticated(t *testing.T) {
	t.Parallel()

	store := New(NewMemoryStorage())
	store.SetUser(api.User{ID: "u1"})
	assert.False(t, store.IsAuthenticated())
}

func TestSetLoadingIsNotPersisted(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	store := New(storage)
	store.SetLoading(true)
	assert.True(t, store.Loading())
	assert.True(t, store.Snapshot().Loading)

	reloaded := New(storage)
	assert.False(t, reloaded.Loading())
}

func TestRehydratesFromFileStorage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	storage, err := NewFileStorage(path)
	require.NoError(t, err)

	token := signedToken(t, time.Now().Add(time.Hour))
	New(storage).SetAuth(token, api.User{ID: "u1", Username: "ada"})

	reopened, err := NewFileStorage(path)
	require.NoError(t, err)
	restored := New(reopened)
	require.True(t, restored.IsAuthenticated())
	assert.Equal(t, token, restored.Token())
	assert.Equal(t, "ada", restored.User().Username)
}

func TestRehydrateDiscardsExpiredToken(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	token := signedToken(t, time.Now().Add(-time.Minute))
	require.NoError(t, storage.Set(KeyAccessToken, token))
	require.NoError(t, storage.Set(KeyUser, `{"id":"u1"}`))

	store := New(storage)
	assert.False(t, store.IsAuthenticated())
	_, ok, _ := storage.Get(KeyAccessToken)
	assert.False(t, ok)
}

func TestRehydrateKeepsOpaqueToken(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(KeyAccessToken, "opaque-token"))
	require.NoError(t, storage.Set(KeyUser, `{"id":"u1","username":"ada"}`))

	store := New(storage)
	assert.True(t, store.IsAuthenticated())
}

func TestRehydrateRequiresUser(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(KeyAccessToken, "opaque-token"))

	assert.False(t, New(storage).IsAuthenticated())
}

func TestWithClockControlsExpiry(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, storage.Set(KeyAccessToken, signedToken(t, exp)))
	require.NoError(t, storage.Set(KeyUser, `{"id":"u1"}`))

	before := New(storage, WithClock(func() time.Time { return exp.Add(-time.Second) }))
	assert.True(t, before.IsAuthenticated())

	after := New(storage, WithClock(func() time.Time { return exp }))
	assert.False(t, after.IsAuthenticated())
}

type failingStorage struct{}

func (failingStorage) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingStorage) Set(string, string) error         { return errors.New("disk gone") }
func (failingStorage) Delete(...string) error           { return errors.New("disk gone") }

func TestStorageFailuresDoNotBreakState(t *testing.T) {
	t.Parallel()

	store := New(failingStorage{})
	store.SetAuth("tok", api.User{ID: "u1"})
	assert.True(t, store.IsAuthenticated())
	store.ClearAuth()
	assert.False(t, store.IsAuthenticated())
}

// stallingStorage holds the first token write until release is closed.
type stallingStorage struct {
	*MemoryStorage
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStorage) Set(key, value string) error {
	if key == KeyAccessToken {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.MemoryStorage.Set(key, value)
}

func TestClearAuthDuringSlowSetAuthLeavesStorageCleared(t *testing.T) {
	t.Parallel()

	storage := &stallingStorage{
		MemoryStorage: NewMemoryStorage(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	store := New(storage)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		store.SetAuth("tok", api.User{ID: "u1"})
	}()
	<-storage.entered
	go func() {
		defer wg.Done()
		store.ClearAuth()
	}()
	time.Sleep(20 * time.Millisecond)
	close(storage.release)
	wg.Wait()

	assert.False(t, store.IsAuthenticated())
	_, ok, err := storage.Get(KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok, "storage kept a token the store no longer holds")
	_, ok, _ = storage.Get(KeyUser)
	assert.False(t, ok)
}

func TestFileStorageDeleteRemovesEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	storage, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, storage.Set(KeyAccessToken, "tok"))
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, storage.Delete(KeyAccessToken, KeyUser))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + partialSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultPathHonoursEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	t.Setenv(sessionEnvVar, path)
	assert.Equal(t, path, DefaultPath())
}
