package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type jobKind string

type jobStatus string

const (
	jobKindAuth     jobKind = "auth"
	jobKindLogout   jobKind = "logout"
	jobKindList     jobKind = "list"
	jobKindDocument jobKind = "document"
	jobKindSummary  jobKind = "summary"
	jobKindGenerate jobKind = "generate"
	jobKindPoll     jobKind = "poll"
	jobKindPrepare  jobKind = "prepare"
	jobKindUpload   jobKind = "upload"
	jobKindDelete   jobKind = "delete"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
	jobStatusCancelled jobStatus = "cancelled"
)

type jobSnapshot struct {
	ID          string
	Kind        jobKind
	Status      jobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

type jobSignalMsg struct {
	Snapshot jobSnapshot
}

type jobResultEnvelope struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

type jobBus struct {
	counter int64
	logger  *slog.Logger
}

func newJobBus(logger *slog.Logger) *jobBus {
	return &jobBus{logger: logger}
}

func (b *jobBus) nextID(kind jobKind) string {
	idx := atomic.AddInt64(&b.counter, 1)
	return fmt.Sprintf("%s-%d", kind, idx)
}

// Start runs runner under ctx. Cancelling ctx is how a screen abandons work
// it no longer wants the result of.
func (b *jobBus) Start(ctx context.Context, kind jobKind, runner jobRunner) tea.Cmd {
	id := b.nextID(kind)
	started := time.Now()
	startSnapshot := jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning, StartedAt: started}
	startCmd := func() tea.Msg {
		return jobSignalMsg{Snapshot: startSnapshot}
	}

	runCmd := func() tea.Msg {
		return b.run(ctx, startSnapshot, runner)
	}

	return tea.Sequence(startCmd, runCmd)
}

func (b *jobBus) run(ctx context.Context, snapshot jobSnapshot, runner jobRunner) jobResultEnvelope {
	payload, err := runner(ctx)
	snapshot.CompletedAt = time.Now()
	switch {
	case err == nil:
		snapshot.Status = jobStatusSucceeded
	case errors.Is(err, context.Canceled):
		snapshot.Status = jobStatusCancelled
	default:
		snapshot.Status = jobStatusFailed
		snapshot.Err = err.Error()
	}
	snapshot.Duration = snapshot.CompletedAt.Sub(snapshot.StartedAt)
	b.logger.Info("[jobs] finished",
		"job", snapshot.ID,
		"kind", snapshot.Kind,
		"status", snapshot.Status,
		"duration", snapshot.Duration,
		"err", err,
	)
	return jobResultEnvelope{Snapshot: snapshot, Payload: payload}
}
