package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/library"
	"github.com/readpilot/readpilot/internal/poll"
	"github.com/readpilot/readpilot/internal/query"
	"github.com/readpilot/readpilot/internal/session"
	"github.com/readpilot/readpilot/internal/upload"
)

// fakeBackend speaks the subset of the ReadPilot API the workspace uses.
type fakeBackend struct {
	mu            sync.Mutex
	docs          []api.Document
	summary       *api.Summary
	summaryAfter  int
	summaryReads  int
	listCalls     atomic.Int32
	expireSession bool
	lastUpload    string
	beforeList    func()
}

// holdNextList blocks the next list request until release is closed.
func (b *fakeBackend) holdNextList() (started, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beforeList = func() {
		close(started)
		<-release
	}
	return started, release
}

func (b *fakeBackend) setDocs(docs ...api.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = docs
}

func (b *fakeBackend) setSummary(s *api.Summary, after int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary = s
	b.summaryAfter = after
}

func (b *fakeBackend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireSession = true
}

func (b *fakeBackend) reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summaryReads
}

func (b *fakeBackend) uploaded() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpload
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"code": 0, "message": "ok", "data": data}))
	}
	fail := func(w http.ResponseWriter, status int, detail string) {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"detail":%q}`, detail)
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			expired := b.expireSession
			b.mu.Unlock()
			if expired || r.Header.Get("Authorization") != "Bearer tok-ada" {
				fail(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct horse" {
			fail(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		reply(w, map[string]any{
			"token": map[string]any{"access_token": "tok-ada", "token_type": "bearer"},
			"user":  map[string]any{"id": "u1", "email": body["email"], "username": "ada"},
		})
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusBadRequest, "Email already registered")
	})
	mux.HandleFunc("POST /auth/logout", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, nil)
	}))
	mux.HandleFunc("GET /auth/me", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"id": "u1", "email": "ada@example.com", "username": "ada", "documents_read": 4})
	}))
	mux.HandleFunc("GET /documents", authed(func(w http.ResponseWriter, r *http.Request) {
		b.listCalls.Add(1)
		b.mu.Lock()
		hold := b.beforeList
		b.beforeList = nil
		b.mu.Unlock()
		if hold != nil {
			hold()
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		reply(w, api.Page{Items: b.docs, Total: len(b.docs), Page: 1, PageSize: 20, TotalPages: 1})
	}))
	mux.HandleFunc("POST /documents", authed(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		doc := api.Document{
			ID:               fmt.Sprintf("d%d", time.Now().UnixNano()),
			Title:            r.FormValue("title"),
			FileType:         filepath.Ext(header.Filename),
			FileSize:         int64(len(data)),
			ProcessingStatus: api.StatusPending,
		}
		b.mu.Lock()
		b.lastUpload = string(data)
		b.docs = append([]api.Document{doc}, b.docs...)
		b.mu.Unlock()
		reply(w, doc)
	}))
	mux.HandleFunc("GET /documents/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, doc := range b.docs {
			if doc.ID == r.PathValue("id") {
				reply(w, doc)
				return
			}
		}
		fail(w, http.StatusNotFound, "Document not found")
	}))
	mux.HandleFunc("DELETE /documents/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, doc := range b.docs {
			if doc.ID == r.PathValue("id") {
				b.docs = append(b.docs[:i], b.docs[i+1:]...)
				reply(w, nil)
				return
			}
		}
		fail(w, http.StatusNotFound, "Document not found")
	}))
	mux.HandleFunc("GET /documents/{id}/summary", authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.summaryReads++
		if b.summary == nil || b.summaryReads <= b.summaryAfter {
			fail(w, http.StatusNotFound, "Summary not found")
			return
		}
		reply(w, b.summary)
	}))
	mux.HandleFunc("POST /documents/{id}/summary", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]string{"status": "processing"})
	}))
	return mux
}

type fixture struct {
	backend *fakeBackend
	ws      *Workspace
	session *session.Store
	library *library.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &fakeBackend{}
	server := httptest.NewServer(backend.handler(t))
	t.Cleanup(server.Close)

	sess := session.New(session.NewMemoryStorage())
	client, err := api.New(api.Options{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Token:      sess.Token,
	})
	require.NoError(t, err)

	lib := library.NewStore()
	ws := New(client, sess, lib, query.New(query.Options{}), Options{
		Backoff: poll.Backoff{Initial: time.Millisecond, Factor: 2, Max: 4 * time.Millisecond, MaxAttempts: 5},
	})
	return &fixture{backend: backend, ws: ws, session: sess, library: lib}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.ws.Login(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
}

func TestLoginSuccessStoresSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user, err := f.ws.Login(context.Background(), " ada@example.com ", "correct horse")
	require.NoError(t, err)

	assert.Equal(t, "ada", user.Username)
	assert.True(t, f.session.IsAuthenticated())
	assert.Equal(t, "tok-ada", f.session.Token())
	assert.False(t, f.session.Loading())
}

func TestLoginFailureKeepsSessionAndSurfacesMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.ws.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)

	assert.Equal(t, "Incorrect email or password", api.MessageOr(err, "Login failed"))
	assert.False(t, f.session.IsAuthenticated())
	assert.False(t, f.session.Loading())
}

func TestLoginRequiresFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.ws.Login(context.Background(), "  ", "pw")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestRegisterFailureSurfacesMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.ws.Register(context.Background(), "ada@example.com", "ada", "pw")
	require.Error(t, err)
	assert.Equal(t, "Email already registered", api.MessageOr(err, "Registration failed"))
	assert.False(t, f.session.IsAuthenticated())
}

func TestProtectedCallsRequireSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.ws.Documents(context.Background(), 1, 20)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, f.ws.Delete(context.Background(), "x"), ErrUnauthenticated)
	assert.Zero(t, f.backend.listCalls.Load())
}

func TestUploadPrependsPendingDocument(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.backend.setDocs(api.Document{ID: "old", Title: "Old", ProcessingStatus: api.StatusCompleted})
	f.login(t)

	_, err := f.ws.Documents(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, f.library.Documents(), 1)

	path := filepath.Join(t.TempDir(), "reading list.txt")
	require.NoError(t, os.WriteFile(path, []byte("chapter one"), 0o600))

	doc, err := f.ws.Upload(context.Background(), path, "")
	require.NoError(t, err)

	docs := f.library.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, doc.ID, docs[0].ID)
	assert.Equal(t, api.StatusPending, docs[0].ProcessingStatus)
	assert.Equal(t, "reading list", docs[0].Title)
	assert.Equal(t, "chapter one", f.backend.uploaded())

	// The upload invalidated the cached page, so the next read hits the server.
	_, err = f.ws.Documents(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.backend.listCalls.Load())
}

func TestUploadValidationSendsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)

	path := filepath.Join(t.TempDir(), "virus.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o600))

	_, err := f.ws.Upload(context.Background(), path, "")
	var verr *upload.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.library.Documents())
	assert.Empty(t, f.backend.uploaded())
}

func TestDocumentsServedFromCacheWhileFresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)

	for i := 0; i < 3; i++ {
		_, err := f.ws.Documents(context.Background(), 1, 20)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.backend.listCalls.Load())

	_, err := f.ws.RefreshDocuments(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.backend.listCalls.Load())
}

func TestDocumentMergesIntoList(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.backend.setDocs(api.Document{ID: "a", Title: "A", ProcessingStatus: api.StatusProcessing})
	f.login(t)
	_, err := f.ws.Documents(context.Background(), 1, 20)
	require.NoError(t, err)

	f.backend.setDocs(api.Document{ID: "a", Title: "A", ProcessingStatus: api.StatusCompleted})

	doc, err := f.ws.Document(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, api.StatusCompleted, doc.ProcessingStatus)
	assert.Equal(t, api.StatusCompleted, f.library.Documents()[0].ProcessingStatus)
	require.NotNil(t, f.library.Current())
	assert.Equal(t, "a", f.library.Current().ID)
}

func TestDeleteRemovesLocallyAfterServer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.backend.setDocs(api.Document{ID: "a"}, api.Document{ID: "b"})
	f.login(t)
	_, err := f.ws.Documents(context.Background(), 1, 20)
	require.NoError(t, err)
	_, err = f.ws.Document(context.Background(), "a")
	require.NoError(t, err)

	require.NoError(t, f.ws.Delete(context.Background(), "a"))
	assert.Nil(t, f.library.Current())
	require.Len(t, f.library.Documents(), 1)

	err = f.ws.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, api.ErrNotFound))
	assert.Len(t, f.library.Documents(), 1)
}

func TestUnauthorizedEndsSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.backend.setDocs(api.Document{ID: "a"})
	f.login(t)
	_, err := f.ws.Documents(context.Background(), 1, 20)
	require.NoError(t, err)

	f.backend.expire()

	_, err = f.ws.RefreshDocuments(context.Background(), 1, 20)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "Could not validate credentials", api.MessageOr(err, ""))
	assert.False(t, f.session.IsAuthenticated())
	assert.Empty(t, f.library.Documents())
}

func TestLogoutClearsEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.backend.setDocs(api.Document{ID: "a"})
	f.login(t)
	_, err := f.ws.Documents(context.Background(), 1, 20)
	require.NoError(t, err)

	require.NoError(t, f.ws.Logout(context.Background()))
	assert.False(t, f.session.IsAuthenticated())
	assert.Empty(t, f.library.Documents())
	_, ok := query.Peek[api.Page](f.ws.Cache(), query.DocumentsKey(1, 20))
	assert.False(t, ok)
}

func TestListFinishingAfterLogoutLeavesStoresEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.backend.setDocs(api.Document{ID: "alice-secret", Title: "Private notes"})
	f.login(t)
	started, release := f.backend.holdNextList()

	done := make(chan error, 1)
	go func() {
		_, err := f.ws.Documents(context.Background(), 1, 20)
		done <- err
	}()
	<-started
	require.NoError(t, f.ws.Logout(context.Background()))
	close(release)

	assert.ErrorIs(t, <-done, ErrUnauthenticated)
	assert.False(t, f.session.IsAuthenticated())
	assert.Empty(t, f.library.Documents())
	_, ok := query.Peek[api.Page](f.ws.Cache(), query.DocumentsKey(1, 20))
	assert.False(t, ok)
}

func TestLogoutClearsLocallyWhenServerFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	f.backend.expire()

	err := f.ws.Logout(context.Background())
	assert.Error(t, err)
	assert.False(t, f.session.IsAuthenticated())
}

func TestRefreshUserUpdatesProfile(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	user, err := f.ws.RefreshUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, user.DocumentsRead)
	assert.Equal(t, 4, f.session.User().DocumentsRead)
}

func TestSummaryMissingIsNil(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	s, err := f.ws.Summary(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGenerateThenAwaitSummary(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	f.backend.setSummary(&api.Summary{ID: "s1", DocumentID: "a", Abstract: "Short.", DepthLevel: api.DepthBrief}, 2)

	require.NoError(t, f.ws.GenerateSummary(context.Background(), "a", api.DepthBrief))
	got, err := f.ws.AwaitSummary(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "Short.", got.Abstract)
	assert.Equal(t, 3, f.backend.reads())

	cached, err := f.ws.Summary(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "s1", cached.ID)
}

func TestAwaitSummaryIgnoresPreviousVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	previous := &api.Summary{ID: "s1", DepthLevel: api.DepthBrief}
	f.backend.setSummary(previous, 0)

	_, err := f.ws.AwaitSummary(context.Background(), "a", previous)
	assert.ErrorIs(t, err, poll.ErrExhausted)
}

func TestAwaitSummaryCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ws.AwaitSummary(ctx, "a", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.backend.reads())
}

func TestGenerateSummaryRejectsUnknownDepth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	assert.Error(t, f.ws.GenerateSummary(context.Background(), "a", "epic"))
}
