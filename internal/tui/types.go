package tui

import (
	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/upload"
)

type screen int

const (
	screenLogin screen = iota
	screenRegister
	screenLibrary
	screenUpload
	screenDetail
)

// protected screens need a session; navigate sends everyone else to login.
func (s screen) protected() bool {
	return s >= screenLibrary
}

func (s screen) String() string {
	switch s {
	case screenLogin:
		return "login"
	case screenRegister:
		return "register"
	case screenLibrary:
		return "library"
	case screenUpload:
		return "upload"
	case screenDetail:
		return "detail"
	default:
		return "unknown"
	}
}

const heroTagline = "Upload it. Let the pilot read it first."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	titlePreviewLimit         = 60
)

const (
	uploadPathPlaceholder  = "Drop a file here or type its path…"
	uploadTitlePlaceholder = "Title (optional, defaults to the file name)"
)

const (
	msgSessionExpired = "Your session has expired. Please sign in again."
	msgSignInFirst    = "Sign in to open your library."
)

type authResultMsg struct {
	register bool
	user     api.User
	err      error
}

type logoutMsg struct {
	err error
}

type documentsMsg struct {
	page api.Page
	err  error
}

type documentMsg struct {
	id  string
	doc api.Document
	err error
}

type summaryMsg struct {
	id      string
	summary *api.Summary
	err     error
}

type generateMsg struct {
	id    string
	depth api.Depth
	err   error
}

type awaitSummaryMsg struct {
	id      string
	summary api.Summary
	err     error
}

type prepareMsg struct {
	candidate upload.Candidate
	err       error
}

type uploadMsg struct {
	doc api.Document
	err error
}

type deleteMsg struct {
	id  string
	err error
}
