package api

import (
	"strings"
	"time"
)

// Status is the server-side processing state of an uploaded document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Depth selects how much detail a generated summary carries.
type Depth string

const (
	DepthBrief    Depth = "brief"
	DepthDetailed Depth = "detailed"
)

// User is the account profile returned by the auth endpoints.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Username         string         `json:"username"`
	IsActive         bool           `json:"is_active"`
	IsVerified       bool           `json:"is_verified"`
	Preferences      map[string]any `json:"preferences,omitempty"`
	TotalReadingTime int            `json:"total_reading_time"`
	DocumentsRead    int            `json:"documents_read"`
	QuestionsAsked   int            `json:"questions_asked"`
	NotesCreated     int            `json:"notes_created"`
	CreatedAt        Timestamp      `json:"created_at"`
	UpdatedAt        Timestamp      `json:"updated_at"`
}

// Token is the access token payload issued on login or registration.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// AuthResult pairs an issued token with the authenticated user.
type AuthResult struct {
	Token Token `json:"token"`
	User  *User `json:"user"`
}

// Document mirrors the server's view of an uploaded file.
type Document struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	FilePath         string    `json:"file_path,omitempty"`
	FileHash         string    `json:"file_hash"`
	FileSize         int64     `json:"file_size"`
	FileType         string    `json:"file_type"`
	Author           string    `json:"author,omitempty"`
	PageCount        *int      `json:"page_count,omitempty"`
	WordCount        *int      `json:"word_count,omitempty"`
	ProcessingStatus Status    `json:"processing_status"`
	ProcessingError  string    `json:"processing_error,omitempty"`
	IsIndexed        bool      `json:"is_indexed"`
	CreatedAt        Timestamp `json:"created_at"`
	UpdatedAt        Timestamp `json:"updated_at"`
}

// Summary is an AI-generated digest of a document.
type Summary struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Abstract     string    `json:"abstract"`
	KeyInsights  []string  `json:"key_insights"`
	MainConcepts []string  `json:"main_concepts"`
	DepthLevel   Depth     `json:"depth_level"`
	ModelUsed    string    `json:"model_used"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
}

// Page is one page of the document library.
type Page struct {
	Items      []Document `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// Timestamp accepts RFC 3339 values as well as the zone-less ISO-8601
// values the backend emits for naive datetimes. Zone-less values are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}
