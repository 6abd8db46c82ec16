package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/readpilot/readpilot/internal/api"
	"github.com/readpilot/readpilot/internal/config"
	"github.com/readpilot/readpilot/internal/library"
	"github.com/readpilot/readpilot/internal/logging"
	"github.com/readpilot/readpilot/internal/poll"
	"github.com/readpilot/readpilot/internal/query"
	"github.com/readpilot/readpilot/internal/service"
	"github.com/readpilot/readpilot/internal/session"
	"github.com/readpilot/readpilot/internal/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			config.Usage(os.Stderr)
			return
		}
		fmt.Fprintln(os.Stderr, "readpilot:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	logger, logFile, err := logging.OpenFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging disabled:", err)
		logger = logging.Discard()
	} else {
		defer logFile.Close()
	}
	logger.Info("starting readpilot", "api_url", cfg.APIURL, "page_size", cfg.PageSize)

	sessionPath := cfg.SessionFile
	if sessionPath == "" {
		sessionPath = session.DefaultPath()
	}
	storage, err := session.NewFileStorage(sessionPath)
	if err != nil {
		return fmt.Errorf("session storage: %w", err)
	}
	sess := session.New(storage, session.WithLogger(logger))

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	client, err := api.New(api.Options{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
		Token:      sess.Token,
		Limiter:    limiter,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	cache := query.New(query.Options{StaleTime: cfg.StaleTime, Logger: logger})
	ws := service.New(client, sess, library.NewStore(), cache, service.Options{
		Backoff: poll.Backoff{
			Initial:     cfg.PollInitial,
			Factor:      poll.DefaultBackoff.Factor,
			Max:         cfg.PollMax,
			MaxAttempts: cfg.PollAttempts,
		},
		Logger: logger,
	})

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if !cfg.NoAltScreen && term.IsTerminal(int(os.Stdout.Fd())) {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Workspace: ws,
			PageSize:  cfg.PageSize,
			Logger:    logger,
		}),
		opts...,
	)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	logger.Info("readpilot exited")
	return nil
}
