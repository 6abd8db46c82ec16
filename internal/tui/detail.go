package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/poll"
	"github.com/readpilot/readpilot/internal/upload"
)

// openDocument enters the detail screen. Everything started from here runs
// under detailCtx and is cancelled when the screen is left.
func (m *model) openDocument(id string) tea.Cmd {
	if cmd := m.navigate(screenDetail); m.screen != screenDetail {
		return cmd
	}
	m.detailCtx, m.detailCancel = context.WithCancel(context.Background())
	m.detailID = id
	m.summary = nil
	m.generating = ""
	m.detailLoading = true
	m.summaryLoading = true
	m.errorMessage = ""
	m.infoMessage = ""
	m.viewport.SetYOffset(0)
	if doc, ok := m.ws.Library().Find(id); ok {
		m.ws.Library().SetCurrentDocument(&doc)
	}
	m.refreshDetailContent()
	return tea.Batch(
		m.startWithContext(m.detailCtx, jobKindDocument, documentJob(m.ws, id, false)),
		m.startWithContext(m.detailCtx, jobKindSummary, summaryJob(m.ws, id, false)),
	)
}

func (m *model) leaveDetail() {
	if m.detailCancel != nil {
		m.detailCancel()
		m.logger.Debug("detail closed; pending work cancelled", "document_id", m.detailID)
	}
	m.detailCancel = nil
	m.detailID = ""
	m.summary = nil
	m.generating = ""
	m.detailLoading = false
	m.summaryLoading = false
	m.ws.Library().SetCurrentDocument(nil)
}

// onDetail reports whether a result for id may still be applied.
func (m *model) onDetail(id string) bool {
	return m.screen == screenDetail && m.detailID == id
}

func (m *model) handleDetailKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc", "backspace", "q":
		m.errorMessage = ""
		m.infoMessage = ""
		return m.navigate(screenLibrary)
	case "r":
		m.detailLoading = true
		m.summaryLoading = m.generating == ""
		m.errorMessage = ""
		cmds := []tea.Cmd{m.startWithContext(m.detailCtx, jobKindDocument, documentJob(m.ws, m.detailID, true))}
		if m.generating == "" {
			cmds = append(cmds, m.startWithContext(m.detailCtx, jobKindSummary, summaryJob(m.ws, m.detailID, true)))
		}
		return tea.Batch(cmds...)
	case "b":
		return m.requestSummary(api.DepthBrief)
	case "D":
		return m.requestSummary(api.DepthDetailed)
	case "?":
		m.helpVisible = !m.helpVisible
		return nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(key)
	return cmd
}

func (m *model) requestSummary(depth api.Depth) tea.Cmd {
	if m.generating != "" {
		m.infoMessage = "A summary is already being generated."
		return nil
	}
	doc := m.ws.Library().Current()
	if doc != nil && doc.ProcessingStatus != api.StatusCompleted {
		m.infoMessage = "Summaries are available once processing has completed."
		return nil
	}
	m.generating = depth
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Generating a %s summary…", depth)
	m.refreshDetailContent()
	return m.startWithContext(m.detailCtx, jobKindGenerate, generateJob(m.ws, m.detailID, depth))
}

func (m *model) handleDocument(msg documentMsg) tea.Cmd {
	if !m.onDetail(msg.id) {
		return nil
	}
	// Cancelled work belongs to an earlier visit; its flags are not ours.
	if errors.Is(msg.err, context.Canceled) {
		return nil
	}
	m.detailLoading = false
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrNotFound) {
			m.errorMessage = "This document no longer exists."
			m.refreshDetailContent()
			return nil
		}
		return m.failed(msg.err, "Could not load the document")
	}
	m.refreshDetailContent()
	return nil
}

func (m *model) handleSummary(msg summaryMsg) tea.Cmd {
	if !m.onDetail(msg.id) {
		return nil
	}
	if errors.Is(msg.err, context.Canceled) {
		return nil
	}
	m.summaryLoading = false
	if msg.err != nil {
		return m.failed(msg.err, "Could not load the summary")
	}
	m.summary = msg.summary
	m.refreshDetailContent()
	return nil
}

func (m *model) handleGenerate(msg generateMsg) tea.Cmd {
	if !m.onDetail(msg.id) {
		return nil
	}
	if msg.err != nil {
		m.generating = ""
		m.infoMessage = ""
		m.refreshDetailContent()
		if errors.Is(msg.err, context.Canceled) {
			return nil
		}
		return m.failed(msg.err, "Could not start summary generation")
	}
	m.infoMessage = fmt.Sprintf("%s summary requested. Waiting for the result…", titleCase(string(msg.depth)))
	return m.startWithContext(m.detailCtx, jobKindPoll, awaitSummaryJob(m.ws, msg.id, m.summary))
}

func (m *model) handleAwaitSummary(msg awaitSummaryMsg) tea.Cmd {
	if !m.onDetail(msg.id) {
		return nil
	}
	m.generating = ""
	switch {
	case msg.err == nil:
		summary := msg.summary
		m.summary = &summary
		m.errorMessage = ""
		m.infoMessage = "Summary ready."
	case errors.Is(msg.err, context.Canceled):
		return nil
	case errors.Is(msg.err, poll.ErrExhausted):
		m.infoMessage = "The summary is taking longer than usual. Press r to check again."
	default:
		m.infoMessage = ""
		m.refreshDetailContent()
		return m.failed(msg.err, "Could not load the summary")
	}
	m.refreshDetailContent()
	return nil
}

func (m *model) refreshDetailContent() {
	if m.screen != screenDetail {
		return
	}
	m.viewport.SetContent(m.buildDetailContent())
}

func (m *model) buildDetailContent() string {
	cb := &contentBuilder{}
	doc := m.ws.Library().Current()
	wrap := m.wrapWidth(2)

	if doc == nil {
		if m.detailLoading {
			cb.WriteString(helperStyle.Render(m.spinner.View() + " Loading document…"))
		} else {
			cb.WriteString(helperStyle.Render("Document unavailable."))
		}
		cb.WriteRune('\n')
		return cb.String()
	}

	cb.WriteString(heroTitleStyle.Render(wordwrap.String(doc.Title, wrap)))
	cb.WriteRune('\n')
	meta := []string{statusBadge(doc.ProcessingStatus)}
	if doc.FileType != "" {
		meta = append(meta, strings.ToUpper(strings.TrimPrefix(doc.FileType, ".")))
	}
	if doc.FileSize > 0 {
		meta = append(meta, upload.FormatSize(doc.FileSize))
	}
	if doc.PageCount != nil {
		meta = append(meta, fmt.Sprintf("%d pages", *doc.PageCount))
	}
	if doc.WordCount != nil {
		meta = append(meta, fmt.Sprintf("%d words", *doc.WordCount))
	}
	if !doc.CreatedAt.IsZero() {
		meta = append(meta, "added "+doc.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	cb.WriteString(strings.Join(meta, helperStyle.Render("  ·  ")))
	cb.WriteRune('\n')
	if doc.Author != "" {
		cb.WriteString(helperStyle.Render("by " + doc.Author))
		cb.WriteRune('\n')
	}
	if doc.ProcessingError != "" {
		cb.WriteString(errorStyle.Render(wordwrap.String("Processing failed: "+doc.ProcessingError, wrap)))
		cb.WriteRune('\n')
	}
	if doc.IsIndexed {
		cb.WriteString(successStyle.Render("Indexed for search and questions."))
		cb.WriteRune('\n')
	}

	cb.WriteRune('\n')
	cb.WriteString(sectionHeaderStyle.Render("AI Summary"))
	cb.WriteRune('\n')
	m.writeSummary(cb, doc, wrap)
	return cb.String()
}

func (m *model) writeSummary(cb *contentBuilder, doc *api.Document, wrap int) {
	switch {
	case m.generating != "":
		cb.WriteString(helperStyle.Render(fmt.Sprintf("%s Generating %s summary… this can take a minute.", m.spinner.View(), m.generating)))
		cb.WriteRune('\n')
		if m.summary == nil {
			return
		}
		cb.WriteRune('\n')
	case m.summaryLoading && m.summary == nil:
		cb.WriteString(helperStyle.Render(m.spinner.View() + " Loading summary…"))
		cb.WriteRune('\n')
		return
	case m.summary == nil && doc.ProcessingStatus != api.StatusCompleted:
		cb.WriteString(helperStyle.Render("The document is still being processed. Summaries unlock when it completes."))
		cb.WriteRune('\n')
		return
	case m.summary == nil:
		cb.WriteString(helperStyle.Render("No summary yet. Press b for a brief summary or D for a detailed one."))
		cb.WriteRune('\n')
		return
	}

	s := m.summary
	label := titleCase(string(s.DepthLevel))
	if s.ModelUsed != "" {
		label += " · " + s.ModelUsed
	}
	cb.WriteString(subtitleStyle.Render(label))
	cb.WriteRune('\n')
	if s.Abstract != "" {
		cb.WriteString(wordwrap.String(s.Abstract, wrap))
		cb.WriteRune('\n')
	}
	bulletWrap := m.wrapWidth(5)
	renderBullets := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		cb.WriteRune('\n')
		cb.WriteString(sectionHeaderStyle.Render(title))
		cb.WriteRune('\n')
		for _, item := range items {
			cb.WriteString(" • ")
			cb.WriteString(indentContinuation(wordwrap.String(item, bulletWrap), "   "))
			cb.WriteRune('\n')
		}
	}
	renderBullets("Key Insights", s.KeyInsights)
	renderBullets("Main Concepts", s.MainConcepts)
	cb.WriteRune('\n')
	cb.WriteString(helperStyle.Render("Press b or D to regenerate."))
	cb.WriteRune('\n')
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
