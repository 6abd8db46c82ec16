// Package service ties the API client to the local state containers and the
// query cache. Every server call goes through here so that the session, the
// document list and the cache stay consistent with each other.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/library"
	"github.com/readpilot/readpilot/internal/poll"
	"github.com/readpilot/readpilot/internal/query"
	"github.com/readpilot/readpilot/internal/session"
	"github.com/readpilot/readpilot/internal/upload"
)

var (
	// ErrUnauthenticated is returned for protected operations without a
	// session, and wraps any 401 from the server.
	ErrUnauthenticated = errors.New("not signed in")
	ErrMissingFields   = errors.New("please fill in all fields")
)

// API is the subset of *api.Client the workspace uses.
type API interface {
	Login(ctx context.Context, email, password string) (api.AuthResult, error)
	Register(ctx context.Context, email, username, password string) (api.AuthResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (api.User, error)
	ListDocuments(ctx context.Context, page, pageSize int) (api.Page, error)
	GetDocument(ctx context.Context, id string) (api.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	UploadDocument(ctx context.Context, req api.UploadRequest) (api.Document, error)
	GetSummary(ctx context.Context, id string, depth api.Depth) (api.Summary, error)
	GenerateSummary(ctx context.Context, id string, depth api.Depth) error
}

var _ API = (*api.Client)(nil)

type Options struct {
	Backoff poll.Backoff
	Logger  *slog.Logger
}

// Workspace is the signed-in user's view of the backend.
type Workspace struct {
	api     API
	session *session.Store
	library *library.Store
	cache   *query.Client
	backoff poll.Backoff
	logger  *slog.Logger
}

func New(client API, sess *session.Store, lib *library.Store, cache *query.Client, opts Options) *Workspace {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	backoff := opts.Backoff
	if backoff == (poll.Backoff{}) {
		backoff = poll.DefaultBackoff
	}
	return &Workspace{
		api:     client,
		session: sess,
		library: lib,
		cache:   cache,
		backoff: backoff,
		logger:  logger,
	}
}

func (w *Workspace) Session() *session.Store { return w.session }
func (w *Workspace) Library() *library.Store { return w.library }
func (w *Workspace) Cache() *query.Client    { return w.cache }

// RequireSession gates protected screens and operations.
func (w *Workspace) RequireSession() error {
	if !w.session.IsAuthenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// Login authenticates and stores the session. On failure the session is left
// untouched and the error carries the server's message.
func (w *Workspace) Login(ctx context.Context, email, password string) (api.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return api.User{}, ErrMissingFields
	}
	w.session.SetLoading(true)
	defer w.session.SetLoading(false)

	res, err := w.api.Login(ctx, email, password)
	if err != nil {
		w.logger.Info("login failed", "email", email, "err", err)
		return api.User{}, fmt.Errorf("login: %w", err)
	}
	return w.begin(res)
}

// Register creates an account and signs in with it.
func (w *Workspace) Register(ctx context.Context, email, username, password string) (api.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return api.User{}, ErrMissingFields
	}
	w.session.SetLoading(true)
	defer w.session.SetLoading(false)

	res, err := w.api.Register(ctx, email, username, password)
	if err != nil {
		w.logger.Info("register failed", "email", email, "err", err)
		return api.User{}, fmt.Errorf("register: %w", err)
	}
	return w.begin(res)
}

func (w *Workspace) begin(res api.AuthResult) (api.User, error) {
	if res.Token.AccessToken == "" || res.User == nil {
		return api.User{}, errors.New("server returned an incomplete session")
	}
	w.library.Clear()
	w.cache.Reset()
	w.session.SetAuth(res.Token.AccessToken, *res.User)
	w.logger.Info("signed in", "user_id", res.User.ID)
	return *res.User, nil
}

// Logout tells the server when it can and always ends the local session.
func (w *Workspace) Logout(ctx context.Context) error {
	var err error
	if w.session.Token() != "" {
		if err = w.api.Logout(ctx); err != nil {
			w.logger.Warn("server logout failed", "err", err)
		}
	}
	w.endSession()
	return err
}

func (w *Workspace) endSession() {
	w.session.ClearAuth()
	w.library.Clear()
	w.cache.Reset()
}

// check ends the session on a 401 so the caller can route to login.
func (w *Workspace) check(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		w.logger.Info("session rejected by server", "err", err)
		w.endSession()
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return err
}

// sameSession reports whether the session that was current when a call
// started is still current. Results of calls that outlived their session
// must not reach the local stores.
func (w *Workspace) sameSession(token string) error {
	if token == "" || w.session.Token() != token {
		w.logger.Debug("dropped result from an ended session")
		return ErrUnauthenticated
	}
	return nil
}

// RefreshUser reloads the profile for the current session.
func (w *Workspace) RefreshUser(ctx context.Context) (api.User, error) {
	if err := w.RequireSession(); err != nil {
		return api.User{}, err
	}
	token := w.session.Token()
	user, err := w.api.Me(ctx)
	if err != nil {
		return api.User{}, w.check(err)
	}
	if err := w.sameSession(token); err != nil {
		return api.User{}, err
	}
	w.session.SetUser(user)
	return user, nil
}

// Documents reads one page of the library through the cache and mirrors it
// into the document store.
func (w *Workspace) Documents(ctx context.Context, page, pageSize int) (api.Page, error) {
	return w.documents(ctx, page, pageSize, false)
}

// RefreshDocuments is Documents without the freshness shortcut.
func (w *Workspace) RefreshDocuments(ctx context.Context, page, pageSize int) (api.Page, error) {
	return w.documents(ctx, page, pageSize, true)
}

func (w *Workspace) documents(ctx context.Context, page, pageSize int, force bool) (api.Page, error) {
	if err := w.RequireSession(); err != nil {
		return api.Page{}, err
	}
	if page < 1 {
		page = 1
	}
	token := w.session.Token()
	fetch := func(ctx context.Context) (api.Page, error) {
		return w.api.ListDocuments(ctx, page, pageSize)
	}
	load := query.Fetch[api.Page]
	if force {
		load = query.Refetch[api.Page]
	}
	result, err := load(ctx, w.cache, query.DocumentsKey(page, pageSize), fetch)
	if err != nil {
		return api.Page{}, w.check(err)
	}
	if err := w.sameSession(token); err != nil {
		return api.Page{}, err
	}
	w.library.SetDocuments(result.Items)
	return result, nil
}

// Document loads one document, makes it current and merges it into the list.
func (w *Workspace) Document(ctx context.Context, id string) (api.Document, error) {
	return w.document(ctx, id, false)
}

func (w *Workspace) RefreshDocument(ctx context.Context, id string) (api.Document, error) {
	return w.document(ctx, id, true)
}

func (w *Workspace) document(ctx context.Context, id string, force bool) (api.Document, error) {
	if err := w.RequireSession(); err != nil {
		return api.Document{}, err
	}
	token := w.session.Token()
	fetch := func(ctx context.Context) (api.Document, error) {
		return w.api.GetDocument(ctx, id)
	}
	load := query.Fetch[api.Document]
	if force {
		load = query.Refetch[api.Document]
	}
	doc, err := load(ctx, w.cache, query.DocumentKey(id), fetch)
	if err != nil {
		return api.Document{}, w.check(err)
	}
	if err := w.sameSession(token); err != nil {
		return api.Document{}, err
	}
	w.library.SetCurrentDocument(&doc)
	w.library.UpdateDocument(id, patchFrom(doc))
	return doc, nil
}

func patchFrom(doc api.Document) library.Patch {
	return library.Patch{
		Title:            &doc.Title,
		ProcessingStatus: &doc.ProcessingStatus,
		ProcessingError:  &doc.ProcessingError,
		PageCount:        doc.PageCount,
		WordCount:        doc.WordCount,
		IsIndexed:        &doc.IsIndexed,
	}
}

// Prepare validates a typed or dropped path without contacting the server.
func (w *Workspace) Prepare(path, title string) (upload.Candidate, error) {
	return upload.Prepare(path, title)
}

// Upload validates path and sends it.
func (w *Workspace) Upload(ctx context.Context, path, title string) (api.Document, error) {
	candidate, err := upload.Prepare(path, title)
	if err != nil {
		return api.Document{}, err
	}
	return w.UploadCandidate(ctx, candidate)
}

// UploadCandidate sends an already prepared file. The new document is
// prepended to the list and the cached pages are invalidated.
func (w *Workspace) UploadCandidate(ctx context.Context, candidate upload.Candidate) (api.Document, error) {
	if err := w.RequireSession(); err != nil {
		return api.Document{}, err
	}
	if err := upload.Validate(candidate.Name, candidate.Size); err != nil {
		return api.Document{}, err
	}
	file, err := candidate.Open()
	if err != nil {
		return api.Document{}, fmt.Errorf("open %s: %w", candidate.Path, err)
	}
	defer file.Close()

	token := w.session.Token()
	doc, err := query.Mutate(ctx, w.cache, func(ctx context.Context) (api.Document, error) {
		return w.api.UploadDocument(ctx, api.UploadRequest{
			FileName: candidate.Name,
			Title:    candidate.Title,
			Content:  file,
		})
	}, query.DocumentsPrefix)
	if err != nil {
		return api.Document{}, w.check(err)
	}
	if err := w.sameSession(token); err != nil {
		return api.Document{}, err
	}
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = api.StatusPending
	}
	w.library.AddDocument(doc)
	w.logger.Info("document uploaded", "document_id", doc.ID, "size", candidate.Size, "hash", candidate.Hash)
	return doc, nil
}

// Delete removes a document on the server and then locally.
func (w *Workspace) Delete(ctx context.Context, id string) error {
	if err := w.RequireSession(); err != nil {
		return err
	}
	_, err := query.Mutate(ctx, w.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.api.DeleteDocument(ctx, id)
	}, query.DocumentsPrefix, query.DocumentKey(id), query.SummaryKey(id))
	if err != nil {
		return w.check(err)
	}
	w.library.RemoveDocument(id)
	w.logger.Info("document deleted", "document_id", id)
	return nil
}

// Summary returns the stored summary, or nil when none has been generated.
func (w *Workspace) Summary(ctx context.Context, id string) (*api.Summary, error) {
	return w.summary(ctx, id, false)
}

func (w *Workspace) RefreshSummary(ctx context.Context, id string) (*api.Summary, error) {
	return w.summary(ctx, id, true)
}

func (w *Workspace) summary(ctx context.Context, id string, force bool) (*api.Summary, error) {
	if err := w.RequireSession(); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) (api.Summary, error) {
		return w.api.GetSummary(ctx, id, "")
	}
	load := query.Fetch[api.Summary]
	if force {
		load = query.Refetch[api.Summary]
	}
	s, err := load(ctx, w.cache, query.SummaryKey(id), fetch)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, w.check(err)
	}
	return &s, nil
}

// GenerateSummary starts generation on the server. Use AwaitSummary for the
// result.
func (w *Workspace) GenerateSummary(ctx context.Context, id string, depth api.Depth) error {
	if err := w.RequireSession(); err != nil {
		return err
	}
	if depth != api.DepthBrief && depth != api.DepthDetailed {
		return fmt.Errorf("unknown summary depth %q", depth)
	}
	_, err := query.Mutate(ctx, w.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.api.GenerateSummary(ctx, id, depth)
	}, query.SummaryKey(id))
	if err != nil {
		return w.check(err)
	}
	w.logger.Info("summary requested", "document_id", id, "depth", depth)
	return nil
}

// AwaitSummary polls until a summary other than previous is available. A
// 404 means generation is still running. Cancel ctx to stop early.
func (w *Workspace) AwaitSummary(ctx context.Context, id string, previous *api.Summary) (api.Summary, error) {
	summary, err := poll.Until(ctx, w.backoff, func(ctx context.Context, attempt int) (api.Summary, bool, error) {
		s, err := w.RefreshSummary(ctx, id)
		if err != nil {
			return api.Summary{}, false, err
		}
		w.logger.Debug("summary poll", "document_id", id, "attempt", attempt, "ready", s != nil)
		if s == nil || sameSummary(s, previous) {
			return api.Summary{}, false, nil
		}
		return *s, true, nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Info("summary wait ended", "document_id", id, "err", err)
		}
		return api.Summary{}, err
	}
	w.cache.Invalidate(query.DocumentKey(id))
	return summary, nil
}

func sameSummary(current, previous *api.Summary) bool {
	if previous == nil {
		return false
	}
	return current.ID == previous.ID &&
		current.DepthLevel == previous.DepthLevel &&
		current.UpdatedAt.Equal(previous.UpdatedAt.Time)
}
