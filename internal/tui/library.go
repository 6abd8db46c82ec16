package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/readpilot/readpilot/internal/api"
)

func (m *model) loadDocuments(force bool) tea.Cmd {
	m.libraryLoading = true
	return m.start(jobKindList, documentsJob(m.ws, m.pageNum, m.config.PageSize, force))
}

func (m *model) handleDocuments(msg documentsMsg) tea.Cmd {
	m.libraryLoading = false
	if m.screen != screenLibrary {
		// The library was left, possibly by signing out, before the list came back.
		return nil
	}
	if msg.err != nil {
		return m.failed(msg.err, "Could not load your documents")
	}
	m.page = msg.page
	m.clampCursor()
	return nil
}

func (m *model) documents() []api.Document {
	return m.ws.Library().Documents()
}

func (m *model) clampCursor() {
	count := len(m.documents())
	if m.cursor >= count {
		m.cursor = count - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) selectedDocument() (api.Document, bool) {
	docs := m.documents()
	if m.cursor < 0 || m.cursor >= len(docs) {
		return api.Document{}, false
	}
	return docs[m.cursor], true
}

func (m *model) totalPages() int {
	if m.page.TotalPages > 0 {
		return m.page.TotalPages
	}
	return 1
}

func (m *model) handleLibraryKey(key tea.KeyMsg) tea.Cmd {
	if m.confirmDelete != "" {
		id := m.confirmDelete
		m.confirmDelete = ""
		if key.String() == "y" || key.String() == "Y" {
			m.infoMessage = "Deleting…"
			return m.start(jobKindDelete, deleteJob(m.ws, id))
		}
		m.infoMessage = "Delete cancelled."
		return nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.documents())-1 {
			m.cursor++
		}
	case "enter":
		if doc, ok := m.selectedDocument(); ok {
			return m.openDocument(doc.ID)
		}
	case "r":
		m.errorMessage = ""
		m.infoMessage = "Refreshing…"
		return m.loadDocuments(true)
	case "n", "right":
		if m.pageNum < m.totalPages() {
			m.pageNum++
			m.cursor = 0
			return m.loadDocuments(false)
		}
	case "p", "left":
		if m.pageNum > 1 {
			m.pageNum--
			m.cursor = 0
			return m.loadDocuments(false)
		}
	case "u":
		m.errorMessage = ""
		m.infoMessage = ""
		return m.navigate(screenUpload)
	case "d", "delete":
		if doc, ok := m.selectedDocument(); ok {
			m.confirmDelete = doc.ID
			m.infoMessage = fmt.Sprintf("Delete %q? Press y to confirm, any other key to keep it.", previewText(doc.Title, titlePreviewLimit))
		}
	case "L":
		m.infoMessage = "Signing out…"
		return m.start(jobKindLogout, logoutJob(m.ws))
	case "?":
		m.helpVisible = !m.helpVisible
	case "q", "esc":
		return tea.Quit
	}
	return nil
}

func (m *model) handleDelete(msg deleteMsg) tea.Cmd {
	if msg.err != nil {
		m.infoMessage = ""
		return m.failed(msg.err, "Could not delete the document")
	}
	m.errorMessage = ""
	m.infoMessage = "Document deleted."
	m.clampCursor()
	if m.screen == screenLibrary {
		return m.loadDocuments(false)
	}
	return nil
}
