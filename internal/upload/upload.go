// Package upload validates files before they are sent to the server. Typed
// paths and paths dropped onto the terminal both go through Prepare.
package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxFileSize is the upload ceiling in bytes.
const MaxFileSize int64 = 50 << 20

const (
	msgUnsupportedType = "Unsupported file type. Supported: PDF, EPUB, DOCX, TXT, Markdown"
	msgTooLarge        = "File exceeds the 50 MB size limit"
)

var allowedExtensions = map[string]bool{
	"pdf":  true,
	"epub": true,
	"docx": true,
	"txt":  true,
	"md":   true,
}

// ErrNoFile is returned when the given path is empty.
var ErrNoFile = errors.New("upload: no file selected")

// ValidationError is a user-facing rejection. No request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Allowed reports whether ext (without dot) is on the allow-list.
func Allowed(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// Validate checks name against the allow-list and size against MaxFileSize.
func Validate(name string, size int64) error {
	if !Allowed(Extension(name)) {
		return &ValidationError{Field: "type", Message: msgUnsupportedType}
	}
	if size > MaxFileSize {
		return &ValidationError{Field: "size", Message: msgTooLarge}
	}
	return nil
}

// TitleFromName is the file name without directory and extension.
func TitleFromName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(title)
	if title == "" {
		return base
	}
	return title
}

// NormalizeDroppedPath cleans what a terminal pastes when a file is dropped
// onto it: surrounding quotes, file:// URLs and backslash-escaped spaces.
func NormalizeDroppedPath(raw string) string {
	path := strings.TrimSpace(raw)
	if len(path) >= 2 {
		first, last := path[0], path[len(path)-1]
		if (first == '\'' || first == '"') && first == last {
			path = path[1 : len(path)-1]
		}
	}
	if strings.HasPrefix(path, "file://") {
		if u, err := url.Parse(path); err == nil && u.Path != "" {
			path = u.Path
		}
	}
	if strings.Contains(path, `\ `) {
		path = strings.ReplaceAll(path, `\ `, " ")
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// Candidate is a validated file ready to send.
type Candidate struct {
	Path      string
	Name      string
	Title     string
	Ext       string
	Size      int64
	Hash      string
	PageCount int
}

// Open returns a reader over the candidate's file.
func (c Candidate) Open() (io.ReadCloser, error) {
	return os.Open(c.Path)
}

// Prepare resolves raw to a file, validates it and gathers the metadata shown
// before confirming the upload. title overrides the derived one when set.
func Prepare(raw, title string) (Candidate, error) {
	path := NormalizeDroppedPath(raw)
	if path == "" {
		return Candidate{}, ErrNoFile
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Candidate{}, &ValidationError{Field: "file", Message: fmt.Sprintf("File not found: %s", path)}
		}
		return Candidate{}, fmt.Errorf("upload: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Candidate{}, &ValidationError{Field: "file", Message: "Select a file, not a directory"}
	}
	if err := Validate(info.Name(), info.Size()); err != nil {
		return Candidate{}, err
	}

	hash, err := fileHash(path)
	if err != nil {
		return Candidate{}, err
	}

	candidate := Candidate{
		Path:  path,
		Name:  info.Name(),
		Title: strings.TrimSpace(title),
		Ext:   Extension(info.Name()),
		Size:  info.Size(),
		Hash:  hash,
	}
	if candidate.Title == "" {
		candidate.Title = TitleFromName(info.Name())
	}
	if candidate.Ext == "pdf" {
		candidate.PageCount = pdfPageCount(path)
	}
	return candidate, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("upload: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// pdfPageCount is best effort; the server does the real parsing.
func pdfPageCount(path string) (count int) {
	defer func() {
		if recover() != nil {
			count = 0
		}
	}()
	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()
	return reader.NumPage()
}

// FormatSize renders a byte count for display.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
