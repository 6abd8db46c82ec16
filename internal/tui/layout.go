package tui

import (
	"strings"

	"github.com/muesli/reflow/truncate"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
	listHeight     int
	showLogo       bool
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 20,
		listHeight:     10,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	l.showLogo = width >= logoWidth()+viewportHorizontalPadding

	chrome := 8
	if l.showLogo {
		chrome += len(logoArtLines)
	}
	usable := height - chrome
	if usable < 6 {
		usable = 6
	}
	l.viewportHeight = usable
	// Each library row takes two lines.
	l.listHeight = usable / 2
	if l.listHeight < 3 {
		l.listHeight = 3
	}
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

// indentContinuation indents every line after the first.
func indentContinuation(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func previewText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	return truncate.StringWithTail(value, uint(limit), "…")
}

// visibleWindow returns the [start, end) slice of count rows that keeps
// cursor on screen when only height rows fit.
func visibleWindow(count, cursor, height int) (int, int) {
	if height <= 0 || count <= height {
		return 0, count
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > count {
		end = count
		start = end - height
	}
	return start, end
}
