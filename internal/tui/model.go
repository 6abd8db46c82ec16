package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/library"
	"github.com/readpilot/readpilot/internal/service"
	"github.com/readpilot/readpilot/internal/session"
	"github.com/readpilot/readpilot/internal/upload"
)

// Workspace is everything the UI asks of the backend. *service.Workspace
// implements it.
type Workspace interface {
	Session() *session.Store
	Library() *library.Store
	RequireSession() error

	Login(ctx context.Context, email, password string) (api.User, error)
	Register(ctx context.Context, email, username, password string) (api.User, error)
	Logout(ctx context.Context) error

	Documents(ctx context.Context, page, pageSize int) (api.Page, error)
	RefreshDocuments(ctx context.Context, page, pageSize int) (api.Page, error)
	Document(ctx context.Context, id string) (api.Document, error)
	RefreshDocument(ctx context.Context, id string) (api.Document, error)
	Delete(ctx context.Context, id string) error

	Prepare(path, title string) (upload.Candidate, error)
	UploadCandidate(ctx context.Context, candidate upload.Candidate) (api.Document, error)

	Summary(ctx context.Context, id string) (*api.Summary, error)
	RefreshSummary(ctx context.Context, id string) (*api.Summary, error)
	GenerateSummary(ctx context.Context, id string, depth api.Depth) error
	AwaitSummary(ctx context.Context, id string, previous *api.Summary) (api.Summary, error)
}

var _ Workspace = (*service.Workspace)(nil)

// Config wires runtime options into the TUI program.
type Config struct {
	Workspace Workspace
	PageSize  int
	Logger    *slog.Logger
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.PageSize <= 0 {
		config.PageSize = 20
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	emailInput := textinput.New()
	emailInput.Placeholder = "you@example.com"
	emailInput.CharLimit = 254
	emailInput.Width = 40
	emailInput.Focus()

	usernameInput := textinput.New()
	usernameInput.Placeholder = "reader"
	usernameInput.CharLimit = 64
	usernameInput.Width = 40

	passwordInput := textinput.New()
	passwordInput.Placeholder = "password"
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	passwordInput.CharLimit = 128
	passwordInput.Width = 40

	pathInput := textinput.New()
	pathInput.Placeholder = uploadPathPlaceholder
	pathInput.CharLimit = 1024
	pathInput.Width = 70

	titleInput := textinput.New()
	titleInput.Placeholder = uploadTitlePlaceholder
	titleInput.CharLimit = 200
	titleInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:        config,
		ws:            config.Workspace,
		logger:        logger,
		jobs:          newJobBus(logger),
		running:       map[string]jobSnapshot{},
		layout:        newPageLayout(),
		screen:        screenLogin,
		pageNum:       1,
		emailInput:    emailInput,
		usernameInput: usernameInput,
		passwordInput: passwordInput,
		pathInput:     pathInput,
		titleInput:    titleInput,
		spinner:       spin,
		viewport:      vp,
	}
}

type model struct {
	config  Config
	ws      Workspace
	logger  *slog.Logger
	jobs    *jobBus
	running map[string]jobSnapshot
	layout  pageLayout
	screen  screen

	emailInput    textinput.Model
	usernameInput textinput.Model
	passwordInput textinput.Model
	authFocus     int
	authLoading   bool

	page           api.Page
	pageNum        int
	cursor         int
	libraryLoading bool
	confirmDelete  string

	pathInput   textinput.Model
	titleInput  textinput.Model
	uploadFocus int
	candidate   *upload.Candidate
	preparing   bool
	uploading   bool

	detailID       string
	detailCtx      context.Context
	detailCancel   context.CancelFunc
	detailLoading  bool
	summary        *api.Summary
	summaryLoading bool
	generating     api.Depth
	viewport       viewport.Model

	spinner      spinner.Model
	infoMessage  string
	errorMessage string
	helpVisible  bool
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.navigate(screenLibrary))
}

// navigate is the only way screens change. Protected screens are checked
// against the session before anything of them is built.
func (m *model) navigate(to screen) tea.Cmd {
	if to.protected() {
		if err := m.ws.RequireSession(); err != nil {
			m.logger.Info("navigation redirected to login", "from", m.screen.String(), "to", to.String())
			if m.infoMessage == "" {
				m.infoMessage = msgSignInFirst
			}
			to = screenLogin
		}
	}
	if m.screen == screenDetail && to != screenDetail {
		m.leaveDetail()
	}
	from := m.screen
	m.screen = to
	m.confirmDelete = ""
	m.helpVisible = false

	switch to {
	case screenLogin, screenRegister:
		if from != to {
			m.resetAuthForm()
		}
		return textinput.Blink
	case screenLibrary:
		return m.loadDocuments(false)
	case screenUpload:
		m.resetUploadForm()
		return textinput.Blink
	}
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refreshDetailContent()
			return m, cmd
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.refreshDetailContent()
		return m, nil
	case tea.MouseMsg:
		if m.screen == screenDetail {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.leaveDetail()
			return m, tea.Quit
		}
		return m.handleKey(msg)
	case jobSignalMsg:
		m.running[msg.Snapshot.ID] = msg.Snapshot
		return m, nil
	case jobResultEnvelope:
		delete(m.running, msg.Snapshot.ID)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case authResultMsg:
		return m, m.handleAuthResult(msg)
	case logoutMsg:
		return m, m.handleLogout(msg)
	case documentsMsg:
		return m, m.handleDocuments(msg)
	case documentMsg:
		return m, m.handleDocument(msg)
	case summaryMsg:
		return m, m.handleSummary(msg)
	case generateMsg:
		return m, m.handleGenerate(msg)
	case awaitSummaryMsg:
		return m, m.handleAwaitSummary(msg)
	case prepareMsg:
		return m, m.handlePrepare(msg)
	case uploadMsg:
		return m, m.handleUpload(msg)
	case deleteMsg:
		return m, m.handleDelete(msg)
	}
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenLogin, screenRegister:
		return m, m.handleAuthKey(key)
	case screenLibrary:
		return m, m.handleLibraryKey(key)
	case screenUpload:
		return m, m.handleUploadKey(key)
	case screenDetail:
		return m, m.handleDetailKey(key)
	}
	return m, nil
}

// start runs a job bound to the program's lifetime.
func (m *model) start(kind jobKind, runner jobRunner) tea.Cmd {
	return m.startWithContext(context.Background(), kind, runner)
}

func (m *model) startWithContext(ctx context.Context, kind jobKind, runner jobRunner) tea.Cmd {
	cmd := m.jobs.Start(ctx, kind, runner)
	if m.busy() {
		return tea.Batch(cmd, m.spinner.Tick)
	}
	return cmd
}

func (m *model) busy() bool {
	return m.authLoading || m.libraryLoading || m.preparing || m.uploading ||
		m.detailLoading || m.summaryLoading || m.generating != ""
}

// failed turns err into an on-screen message. A rejected session sends the
// user back to login.
func (m *model) failed(err error, fallback string) tea.Cmd {
	if errors.Is(err, service.ErrUnauthenticated) {
		m.errorMessage = msgSessionExpired
		m.infoMessage = ""
		return m.navigate(screenLogin)
	}
	m.errorMessage = userMessage(err, fallback)
	return nil
}

func userMessage(err error, fallback string) string {
	var verr *upload.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, service.ErrMissingFields):
		return "Please fill in all fields."
	case errors.Is(err, upload.ErrNoFile):
		return "Select a file to upload."
	}
	return api.MessageOr(err, fallback)
}
