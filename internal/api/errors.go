package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a non-2xx response from the backend. Message is the human-readable
// text the server supplied, or a fallback when it supplied none.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: %s", http.StatusText(e.Status))
	}
	return e.Message
}

// Is lets callers match on ErrNotFound and ErrUnauthorized.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// MessageOr returns the server's message carried by err, or fallback when err
// carries none.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

type errorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

// extractMessage pulls the message or detail field out of an error body.
// FastAPI validation failures put a list of issues under detail.
func extractMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(parsed.Message); msg != "" {
		return msg
	}
	if len(parsed.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(parsed.Detail, &detail); err == nil {
		return strings.TrimSpace(detail)
	}
	var issues []validationIssue
	if err := json.Unmarshal(parsed.Detail, &issues); err == nil {
		parts := make([]string, 0, len(issues))
		for _, issue := range issues {
			if msg := strings.TrimSpace(issue.Msg); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
