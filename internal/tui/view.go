package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/upload"
)

func (m *model) View() string {
	var body string
	switch {
	case m.screen.protected() && m.ws.RequireSession() != nil:
		// The session went away under a protected screen; never draw it.
		body = m.viewAuth()
	case m.screen == screenLogin, m.screen == screenRegister:
		body = m.viewAuth()
	case m.screen == screenLibrary:
		body = m.viewLibrary()
	case m.screen == screenUpload:
		body = m.viewUpload()
	case m.screen == screenDetail:
		body = m.viewDetail()
	}
	return joinNonEmpty([]string{m.heroView(), body, m.messagesView(), m.statusBarView(), m.overlayView()})
}

func (m *model) heroView() string {
	if !m.layout.showLogo {
		return lipgloss.JoinVertical(lipgloss.Left,
			compactTitleStyle.Render("READPILOT"),
			taglineStyle.Render(heroTagline),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, renderLogo(), taglineStyle.Render(heroTagline))
}

func (m *model) viewAuth() string {
	var b strings.Builder
	if m.screen == screenRegister {
		b.WriteString(sectionHeaderStyle.Render("Create an account"))
	} else {
		b.WriteString(sectionHeaderStyle.Render("Sign in"))
	}
	b.WriteString("\n\n")
	b.WriteString(fieldLabel("Email"))
	b.WriteString(m.emailInput.View())
	b.WriteRune('\n')
	if m.screen == screenRegister {
		b.WriteString(fieldLabel("Username"))
		b.WriteString(m.usernameInput.View())
		b.WriteRune('\n')
	}
	b.WriteString(fieldLabel("Password"))
	b.WriteString(m.passwordInput.View())
	b.WriteString("\n\n")
	if m.screen == screenRegister {
		b.WriteString(helperStyle.Render("Tab: next field • Enter: create account • Esc: back to sign in"))
	} else {
		b.WriteString(helperStyle.Render("Tab: next field • Enter: sign in • Ctrl+R: create an account • Esc: quit"))
	}
	return formBoxStyle.Render(b.String())
}

func fieldLabel(label string) string {
	return helperStyle.Render(fmt.Sprintf("%-10s", label))
}

func (m *model) viewLibrary() string {
	docs := m.documents()
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Your library"))
	b.WriteRune('\n')

	switch {
	case len(docs) == 0 && m.libraryLoading:
		b.WriteString(helperStyle.Render(m.spinner.View() + " Loading documents…"))
		return b.String()
	case len(docs) == 0:
		b.WriteString(helperStyle.Render("No documents yet. Press u to upload your first one."))
		return b.String()
	}

	start, end := visibleWindow(len(docs), m.cursor, m.layout.listHeight)
	titleWidth := m.layout.viewportWidth - 20
	if titleWidth < 20 {
		titleWidth = 20
	}
	for i := start; i < end; i++ {
		doc := docs[i]
		title := previewText(doc.Title, titleWidth)
		line := fmt.Sprintf("  %s", title)
		if i == m.cursor {
			line = currentLineStyle.Render("▸ " + title)
		}
		b.WriteString(line)
		b.WriteString("  ")
		b.WriteString(statusBadge(doc.ProcessingStatus))
		b.WriteRune('\n')
		b.WriteString(helperStyle.Render("    " + documentMeta(doc)))
		b.WriteRune('\n')
	}

	total := m.page.Total
	if total < len(docs) {
		total = len(docs)
	}
	footer := fmt.Sprintf("Page %d of %d • %d documents", m.pageNum, m.totalPages(), total)
	if m.libraryLoading {
		footer = m.spinner.View() + " " + footer
	}
	b.WriteString(helperStyle.Render(footer))
	return b.String()
}

func documentMeta(doc api.Document) string {
	parts := []string{}
	if doc.FileType != "" {
		parts = append(parts, strings.ToUpper(strings.TrimPrefix(doc.FileType, ".")))
	}
	if doc.FileSize > 0 {
		parts = append(parts, upload.FormatSize(doc.FileSize))
	}
	if doc.PageCount != nil {
		parts = append(parts, fmt.Sprintf("%d pages", *doc.PageCount))
	}
	if !doc.CreatedAt.IsZero() {
		parts = append(parts, doc.CreatedAt.Local().Format("2006-01-02"))
	}
	return strings.Join(parts, " · ")
}

func (m *model) viewUpload() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Upload a document"))
	b.WriteString("\n\n")
	if c := m.candidate; c != nil {
		b.WriteString(m.candidateCard(*c))
		b.WriteString("\n\n")
		if m.uploading {
			b.WriteString(helperStyle.Render(m.spinner.View() + " Uploading…"))
		} else {
			b.WriteString(helperStyle.Render("Enter: upload • Esc: pick another file"))
		}
		return formBoxStyle.Render(b.String())
	}
	b.WriteString(fieldLabel("File"))
	b.WriteString(m.pathInput.View())
	b.WriteRune('\n')
	b.WriteString(fieldLabel("Title"))
	b.WriteString(m.titleInput.View())
	b.WriteString("\n\n")
	b.WriteString(helperStyle.Render("Supported: PDF, EPUB, DOCX, TXT, Markdown up to " + upload.FormatSize(upload.MaxFileSize) + "."))
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("Tab: switch field • Enter: check file • Esc: back to library"))
	return formBoxStyle.Render(b.String())
}

func (m *model) candidateCard(c upload.Candidate) string {
	rows := []string{
		heroTitleStyle.Render(c.Title),
		helperStyle.Render("File   ") + c.Name,
		helperStyle.Render("Size   ") + upload.FormatSize(c.Size),
	}
	if c.PageCount > 0 {
		rows = append(rows, helperStyle.Render("Pages  ")+fmt.Sprintf("%d", c.PageCount))
	}
	if len(c.Hash) >= 12 {
		rows = append(rows, helperStyle.Render("SHA256 ")+c.Hash[:12]+"…")
	}
	return cardBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) viewDetail() string {
	return joinNonEmpty([]string{
		m.viewport.View(),
		helperStyle.Render("b: brief summary • D: detailed summary • r: refresh • Esc: back"),
	})
}

func (m *model) messagesView() string {
	parts := []string{}
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		message := m.infoMessage
		if m.busy() {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		parts = append(parts, helperStyle.Render(message))
	}
	return strings.Join(parts, "\n")
}

func (m *model) statusBarView() string {
	if !m.screen.protected() {
		return ""
	}
	stats := []string{}
	if user := m.ws.Session().User(); user != nil {
		name := user.Username
		if name == "" {
			name = user.Email
		}
		stats = append(stats, "Signed in as "+name)
	}
	stats = append(stats, fmt.Sprintf("%d documents", len(m.documents())))
	stats = append(stats, m.jobStatusBadges()...)
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func (m *model) jobStatusBadges() []string {
	counts := map[jobKind]int{}
	for _, snap := range m.running {
		if snap.Status == jobStatusRunning {
			counts[snap.Kind]++
		}
	}
	order := []jobKind{jobKindList, jobKindDocument, jobKindSummary, jobKindGenerate, jobKindPoll, jobKindPrepare, jobKindUpload, jobKindDelete, jobKindLogout}
	badges := []string{}
	for _, kind := range order {
		if n := counts[kind]; n > 0 {
			badges = append(badges, fmt.Sprintf("%s ×%d", kind, n))
		}
	}
	return badges
}

func (m *model) overlayView() string {
	if !m.helpVisible {
		return ""
	}
	return joinNonEmpty([]string{m.keyLegendView(), m.helpView()})
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyHints() []keyHint {
	switch m.screen {
	case screenLibrary:
		return []keyHint{
			{"↑/↓", "Move"},
			{"Enter", "Open"},
			{"u", "Upload"},
			{"d", "Delete"},
			{"r", "Refresh"},
			{"n/p", "Next/prev page"},
			{"L", "Sign out"},
			{"?", "Toggle cheatsheet"},
			{"q", "Quit"},
		}
	case screenDetail:
		return []keyHint{
			{"↑/↓", "Scroll"},
			{"b", "Brief summary"},
			{"D", "Detailed summary"},
			{"r", "Refresh"},
			{"Esc", "Back"},
			{"?", "Toggle cheatsheet"},
		}
	}
	return nil
}

func (m *model) keyLegendView() string {
	hints := m.keyHints()
	if len(hints) == 0 {
		return ""
	}
	rows := []string{sectionHeaderStyle.Render("Navigation Cheatsheet")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := i + columns
		if end > len(hints) {
			end = len(hints)
		}
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description + "  ")
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("About summaries"),
		helperStyle.Render("• documents are processed on the server after upload; summaries unlock once the status reads completed."),
		helperStyle.Render("• a brief summary is quick, a detailed one adds key insights and main concepts."),
		helperStyle.Render("• generation runs in the background; leaving the document stops the wait but not the server job."),
		helperStyle.Render("• Ctrl+C quits from anywhere."),
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}

func statusBadge(status api.Status) string {
	switch status {
	case api.StatusCompleted:
		return badgeCompletedStyle.Render("completed")
	case api.StatusProcessing:
		return badgeProcessingStyle.Render("processing")
	case api.StatusFailed:
		return badgeFailedStyle.Render("failed")
	case api.StatusPending, "":
		return badgePendingStyle.Render("pending")
	}
	return badgePendingStyle.Render(string(status))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func logoWidth() int {
	width := 0
	for _, line := range logoArtLines {
		if w := lipgloss.Width(line); w > width {
			width = w
		}
	}
	// shadow column plus container padding
	return width + 3
}

func renderLogo() string {
	if len(logoArtLines) == 0 {
		return ""
	}
	width := 0
	lineRunes := make([][]rune, len(logoArtLines))
	for i, line := range logoArtLines {
		runes := []rune(line)
		lineRunes[i] = runes
		if len(runes) > width {
			width = len(runes)
		}
	}
	width++
	height := len(logoArtLines) + 1

	type cell struct {
		r     rune
		style lipgloss.Style
	}

	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, width)
	}
	for y, runes := range lineRunes {
		for x, r := range runes {
			if r != ' ' && y+1 < height && x+1 < width {
				grid[y+1][x+1] = cell{r: r, style: logoShadowStyle}
			}
		}
	}
	for y, runes := range lineRunes {
		for x, r := range runes {
			if r != ' ' {
				grid[y][x] = cell{r: r, style: logoFaceStyle}
			}
		}
	}

	lines := make([]string, height)
	for y, row := range grid {
		var b strings.Builder
		for _, c := range row {
			if c.r == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteString(c.style.Render(string(c.r)))
		}
		lines[y] = b.String()
	}
	return logoContainerStyle.Render(strings.Join(lines, "\n"))
}
