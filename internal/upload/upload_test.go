package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		size    int64
		wantMsg string
	}{
		{name: "markdown under limit", file: "notes.md", size: 10 << 20},
		{name: "upper-case pdf", file: "Paper.PDF", size: 1024},
		{name: "exactly at limit", file: "book.epub", size: MaxFileSize},
		{name: "executable", file: "setup.exe", size: 1024, wantMsg: msgUnsupportedType},
		{name: "no extension", file: "README", size: 10, wantMsg: msgUnsupportedType},
		{name: "oversized pdf", file: "big.pdf", size: 60 << 20, wantMsg: msgTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.file, tt.size)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantMsg, verr.Message)
		})
	}
}

func TestNormalizeDroppedPath(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"  /tmp/a.pdf  ", "/tmp/a.pdf"},
		{"'/tmp/my file.pdf'", "/tmp/my file.pdf"},
		{`"/tmp/my file.pdf"`, "/tmp/my file.pdf"},
		{`/tmp/my\ file.pdf`, "/tmp/my file.pdf"},
		{"file:///tmp/my%20file.pdf", "/tmp/my file.pdf"},
		{"relative/notes.md", "relative/notes.md"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDroppedPath(tt.in), tt.in)
	}
}

func TestTitleFromName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Deep Work", TitleFromName("/books/Deep Work.epub"))
	assert.Equal(t, "notes.v2", TitleFromName("notes.v2.md"))
	assert.Equal(t, ".md", TitleFromName(".md"))
}

func TestPrepareReadsMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "chapter one.txt")
	content := []byte("It was a bright cold day in April.")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	got, err := Prepare("'"+path+"'", "")
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, path, got.Path)
	assert.Equal(t, "chapter one.txt", got.Name)
	assert.Equal(t, "chapter one", got.Title)
	assert.Equal(t, "txt", got.Ext)
	assert.Equal(t, int64(len(content)), got.Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), got.Hash)
	assert.Zero(t, got.PageCount)

	r, err := got.Open()
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestPrepareTitleOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "draft.md")
	require.NoError(t, os.WriteFile(path, []byte("# hi"), 0o600))

	got, err := Prepare(path, "  Final Draft ")
	require.NoError(t, err)
	assert.Equal(t, "Final Draft", got.Title)
}

func TestPrepareRejections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exe := filepath.Join(dir, "tool.exe")
	require.NoError(t, os.WriteFile(exe, []byte("MZ"), 0o600))

	_, err := Prepare("", "")
	assert.ErrorIs(t, err, ErrNoFile)

	var verr *ValidationError
	_, err = Prepare(exe, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgUnsupportedType, verr.Message)

	_, err = Prepare(filepath.Join(dir, "missing.pdf"), "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)

	_, err = Prepare(dir, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)
}

func TestPrepareToleratesBrokenPDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not really a pdf"), 0o600))

	got, err := Prepare(path, "")
	require.NoError(t, err)
	assert.Equal(t, "pdf", got.Ext)
	assert.Zero(t, got.PageCount)
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "50.0 MB", FormatSize(MaxFileSize))
}
