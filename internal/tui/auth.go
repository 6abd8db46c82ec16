package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/readpilot/readpilot/internal/api"
)

func (m *model) authFields() []*textinput.Model {
	if m.screen == screenRegister {
		return []*textinput.Model{&m.emailInput, &m.usernameInput, &m.passwordInput}
	}
	return []*textinput.Model{&m.emailInput, &m.passwordInput}
}

func (m *model) resetAuthForm() {
	m.passwordInput.SetValue("")
	m.usernameInput.SetValue("")
	m.authLoading = false
	m.authFocus = 0
	m.focusAuthField()
}

func (m *model) focusAuthField() {
	fields := m.authFields()
	if m.authFocus < 0 {
		m.authFocus = len(fields) - 1
	}
	if m.authFocus >= len(fields) {
		m.authFocus = 0
	}
	for i, field := range fields {
		if i == m.authFocus {
			field.Focus()
		} else {
			field.Blur()
		}
	}
}

func (m *model) handleAuthKey(key tea.KeyMsg) tea.Cmd {
	if m.authLoading {
		return nil
	}
	switch key.Type {
	case tea.KeyTab, tea.KeyDown:
		m.authFocus++
		m.focusAuthField()
		return nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.authFocus--
		m.focusAuthField()
		return nil
	case tea.KeyCtrlR:
		if m.screen == screenLogin {
			m.errorMessage = ""
			m.infoMessage = "Create an account to start reading."
			return m.navigate(screenRegister)
		}
		return nil
	case tea.KeyEsc:
		if m.screen == screenRegister {
			m.errorMessage = ""
			m.infoMessage = ""
			return m.navigate(screenLogin)
		}
		return tea.Quit
	case tea.KeyEnter:
		if m.authFocus < len(m.authFields())-1 {
			m.authFocus++
			m.focusAuthField()
			return nil
		}
		return m.submitAuth()
	}

	fields := m.authFields()
	var cmd tea.Cmd
	*fields[m.authFocus], cmd = fields[m.authFocus].Update(key)
	return cmd
}

func (m *model) submitAuth() tea.Cmd {
	email := strings.TrimSpace(m.emailInput.Value())
	password := m.passwordInput.Value()
	m.errorMessage = ""
	m.authLoading = true
	if m.screen == screenRegister {
		username := strings.TrimSpace(m.usernameInput.Value())
		m.infoMessage = "Creating your account…"
		return m.start(jobKindAuth, registerJob(m.ws, email, username, password))
	}
	m.infoMessage = "Signing in…"
	return m.start(jobKindAuth, loginJob(m.ws, email, password))
}

// handleAuthResult keeps the form filled in on failure so the user can fix
// a typo without retyping everything.
func (m *model) handleAuthResult(msg authResultMsg) tea.Cmd {
	m.authLoading = false
	if msg.err != nil {
		m.infoMessage = ""
		fallback := "Login failed"
		if msg.register {
			fallback = "Registration failed"
		}
		m.errorMessage = userMessage(msg.err, fallback)
		m.authFocus = len(m.authFields()) - 1
		m.focusAuthField()
		return nil
	}
	m.errorMessage = ""
	name := msg.user.Username
	if name == "" {
		name = msg.user.Email
	}
	m.infoMessage = fmt.Sprintf("Welcome, %s.", name)
	m.pageNum = 1
	m.cursor = 0
	return m.navigate(screenLibrary)
}

func (m *model) handleLogout(msg logoutMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Warn("logout: server call failed", "err", msg.err)
	}
	m.page = api.Page{}
	m.pageNum = 1
	m.cursor = 0
	m.errorMessage = ""
	m.infoMessage = "Signed out."
	return m.navigate(screenLogin)
}
