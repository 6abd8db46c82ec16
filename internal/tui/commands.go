package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/upload"
)

const requestTimeout = 45 * time.Second

func loginJob(ws Workspace, email, password string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		user, err := ws.Login(ctx, email, password)
		return authResultMsg{user: user, err: err}, err
	}
}

func registerJob(ws Workspace, email, username, password string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		user, err := ws.Register(ctx, email, username, password)
		return authResultMsg{register: true, user: user, err: err}, err
	}
}

func logoutJob(ws Workspace) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 10*time.Second)
		defer cancel()
		err := ws.Logout(ctx)
		return logoutMsg{err: err}, err
	}
}

func documentsJob(ws Workspace, page, pageSize int, force bool) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		load := ws.Documents
		if force {
			load = ws.RefreshDocuments
		}
		result, err := load(ctx, page, pageSize)
		return documentsMsg{page: result, err: err}, err
	}
}

func documentJob(ws Workspace, id string, force bool) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		load := ws.Document
		if force {
			load = ws.RefreshDocument
		}
		doc, err := load(ctx, id)
		return documentMsg{id: id, doc: doc, err: err}, err
	}
}

func summaryJob(ws Workspace, id string, force bool) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		load := ws.Summary
		if force {
			load = ws.RefreshSummary
		}
		summary, err := load(ctx, id)
		return summaryMsg{id: id, summary: summary, err: err}, err
	}
}

func generateJob(ws Workspace, id string, depth api.Depth) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		err := ws.GenerateSummary(ctx, id, depth)
		return generateMsg{id: id, depth: depth, err: err}, err
	}
}

// awaitSummaryJob has no timeout of its own: the backoff bounds it and the
// detail screen's context cancels it.
func awaitSummaryJob(ws Workspace, id string, previous *api.Summary) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		summary, err := ws.AwaitSummary(ctx, id, previous)
		return awaitSummaryMsg{id: id, summary: summary, err: err}, err
	}
}

func prepareJob(ws Workspace, path, title string) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		candidate, err := ws.Prepare(path, title)
		return prepareMsg{candidate: candidate, err: err}, err
	}
}

func uploadJob(ws Workspace, candidate upload.Candidate) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 10*time.Minute)
		defer cancel()
		doc, err := ws.UploadCandidate(ctx, candidate)
		return uploadMsg{doc: doc, err: err}, err
	}
}

func deleteJob(ws Workspace, id string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		err := ws.Delete(ctx, id)
		return deleteMsg{id: id, err: err}, err
	}
}
