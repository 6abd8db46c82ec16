// Package config resolves runtime settings. Later sources win: built-in
// defaults, then a .env file, then READPILOT_* environment variables, then
// command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "READPILOT_"

// Config is read once at startup and treated as immutable.
type Config struct {
	// Backend
	APIURL            string
	RequestTimeout    time.Duration
	RequestsPerSecond float64

	// Local state
	SessionFile string
	StaleTime   time.Duration
	PageSize    int

	// Summary polling
	PollInitial  time.Duration
	PollMax      time.Duration
	PollAttempts int

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Terminal
	NoAltScreen bool
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		APIURL:            "http://localhost:8000/api/v1",
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 10,
		StaleTime:         60 * time.Second,
		PageSize:          20,
		PollInitial:       3 * time.Second,
		PollMax:           30 * time.Second,
		PollAttempts:      6,
		LogFile:           defaultLogFile(),
		LogLevel:          slog.LevelInfo,
	}
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return filepath.Join(os.TempDir(), "readpilot.log")
	}
	return filepath.Join(dir, "readpilot", "readpilot.log")
}

// Load builds a Config from args (without the program name). A missing .env
// file is not an error.
func Load(args []string) (Config, error) {
	cfg := Defaults()

	envFile := getEnvString(envPrefix+"ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.applyFlags(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIURL = getEnvString(envPrefix+"API_URL", c.APIURL)
	c.RequestTimeout = getEnvDuration(envPrefix+"REQUEST_TIMEOUT", c.RequestTimeout)
	c.RequestsPerSecond = getEnvFloat(envPrefix+"REQUESTS_PER_SECOND", c.RequestsPerSecond)
	c.SessionFile = getEnvString(envPrefix+"SESSION_FILE", c.SessionFile)
	c.StaleTime = getEnvDuration(envPrefix+"STALE_TIME", c.StaleTime)
	c.PageSize = getEnvInt(envPrefix+"PAGE_SIZE", c.PageSize)
	c.PollInitial = getEnvDuration(envPrefix+"POLL_INITIAL", c.PollInitial)
	c.PollMax = getEnvDuration(envPrefix+"POLL_MAX", c.PollMax)
	c.PollAttempts = getEnvInt(envPrefix+"POLL_ATTEMPTS", c.PollAttempts)
	c.LogFile = getEnvString(envPrefix+"LOG_FILE", c.LogFile)
	c.NoAltScreen = getEnvBool(envPrefix+"NO_ALT_SCREEN", c.NoAltScreen)
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err)
		}
	}
	return nil
}

// flagSet binds every flag to a field of c, using c's current values as
// defaults.
func (c *Config) flagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("readpilot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.APIURL, "api-url", c.APIURL, "backend base URL")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "timeout for a single request")
	fs.Float64Var(&c.RequestsPerSecond, "rps", c.RequestsPerSecond, "client-side request rate limit (0 disables)")
	fs.StringVar(&c.SessionFile, "session-file", c.SessionFile, "where the signed-in session is kept")
	fs.DurationVar(&c.StaleTime, "stale-time", c.StaleTime, "how long fetched data is served from cache")
	fs.IntVar(&c.PageSize, "page-size", c.PageSize, "documents per library page")
	fs.DurationVar(&c.PollInitial, "poll-initial", c.PollInitial, "first wait before checking for a summary")
	fs.DurationVar(&c.PollMax, "poll-max", c.PollMax, "longest wait between summary checks")
	fs.IntVar(&c.PollAttempts, "poll-attempts", c.PollAttempts, "summary checks before giving up")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "log file path")
	fs.TextVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&c.NoAltScreen, "no-alt-screen", c.NoAltScreen, "disable the alternate screen buffer")
	return fs
}

// Usage prints the flag reference to w.
func Usage(w io.Writer) {
	cfg := Defaults()
	fs := cfg.flagSet()
	fs.SetOutput(w)
	fmt.Fprintln(w, "Usage: readpilot [flags]")
	fs.PrintDefaults()
}

func (c *Config) applyFlags(args []string) error {
	fs := c.flagSet()
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	var problems []string
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("api url %q must be an http(s) URL", c.APIURL))
	}
	if c.PageSize < 1 {
		problems = append(problems, "page size must be positive")
	}
	if c.StaleTime < 0 {
		problems = append(problems, "stale time must not be negative")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		problems = append(problems, "request rate must not be negative")
	}
	if c.PollInitial <= 0 || c.PollMax < c.PollInitial || c.PollAttempts < 1 {
		problems = append(problems, "poll settings need initial > 0, max >= initial and attempts >= 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
