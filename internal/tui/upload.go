package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m *model) resetUploadForm() {
	m.pathInput.SetValue("")
	m.titleInput.SetValue("")
	m.candidate = nil
	m.preparing = false
	m.uploading = false
	m.uploadFocus = 0
	m.pathInput.Focus()
	m.titleInput.Blur()
}

func (m *model) handleUploadKey(key tea.KeyMsg) tea.Cmd {
	if m.uploading || m.preparing {
		return nil
	}
	if m.candidate != nil {
		switch key.String() {
		case "enter", "y":
			m.uploading = true
			m.errorMessage = ""
			m.infoMessage = fmt.Sprintf("Uploading %s…", m.candidate.Name)
			return m.start(jobKindUpload, uploadJob(m.ws, *m.candidate))
		case "esc", "n":
			m.candidate = nil
			m.infoMessage = "Pick another file or press Esc to go back."
			m.pathInput.Focus()
			m.uploadFocus = 0
		}
		return nil
	}

	switch key.Type {
	case tea.KeyEsc:
		m.errorMessage = ""
		m.infoMessage = ""
		return m.navigate(screenLibrary)
	case tea.KeyTab, tea.KeyShiftTab:
		m.uploadFocus = 1 - m.uploadFocus
		if m.uploadFocus == 0 {
			m.pathInput.Focus()
			m.titleInput.Blur()
		} else {
			m.titleInput.Focus()
			m.pathInput.Blur()
		}
		return nil
	case tea.KeyEnter:
		m.preparing = true
		m.errorMessage = ""
		m.infoMessage = "Checking file…"
		return m.start(jobKindPrepare, prepareJob(m.ws, m.pathInput.Value(), m.titleInput.Value()))
	}

	var cmd tea.Cmd
	if m.uploadFocus == 0 {
		m.pathInput, cmd = m.pathInput.Update(key)
	} else {
		m.titleInput, cmd = m.titleInput.Update(key)
	}
	return cmd
}

func (m *model) handlePrepare(msg prepareMsg) tea.Cmd {
	m.preparing = false
	if msg.err != nil {
		m.infoMessage = ""
		return m.failed(msg.err, "Could not read that file")
	}
	candidate := msg.candidate
	m.candidate = &candidate
	m.errorMessage = ""
	m.infoMessage = "Press Enter to upload, Esc to pick another file."
	return nil
}

// handleUpload returns to the library, where the new document is already at
// the top with its pending status.
func (m *model) handleUpload(msg uploadMsg) tea.Cmd {
	m.uploading = false
	if msg.err != nil {
		m.infoMessage = ""
		return m.failed(msg.err, "Upload failed")
	}
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Uploaded %q. Processing has started.", previewText(msg.doc.Title, titlePreviewLimit))
	m.candidate = nil
	if m.screen != screenUpload {
		return nil
	}
	m.pageNum = 1
	m.cursor = 0
	return m.navigate(screenLibrary)
}
