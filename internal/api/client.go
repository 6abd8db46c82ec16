// Package api is a typed client for the ReadPilot backend HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 8 << 20
	requestIDHeader    = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Token supplies the bearer token for each request. Nil or an empty
	// result sends the request unauthenticated.
	Token   func() string
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   func() string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New validates the base URL and returns a Client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("api: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", base.Scheme)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	token := opts.Token
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		token:   token,
		limiter: opts.Limiter,
		logger:  logger,
	}, nil
}

type call struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// token overrides the configured token source when set.
	token string
}

func jsonCall(method, path string, payload any) (call, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return call{}, err
	}
	return call{method: method, path: path, body: bytes.NewReader(data), contentType: "application/json"}, nil
}

func (c *Client) do(ctx context.Context, req call, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	target := *c.baseURL
	target.Path = strings.TrimRight(c.baseURL.Path, "/") + req.path
	if len(req.query) > 0 {
		target.RawQuery = req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), req.body)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	token := req.token
	if token == "" {
		token = c.token()
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("api request failed", "method", req.method, "path", req.path, "request_id", requestID, "err", err)
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("api request",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
		"request_id", requestID,
	)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &Error{Status: resp.StatusCode, Message: extractMessage(body)}
	}
	return decodePayload(resp.StatusCode, body, out)
}

type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodePayload unwraps the {code, message, data} envelope when present and
// decodes the payload into out.
func decodePayload(status int, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	payload := body
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Code != nil {
		if *env.Code != 0 {
			return &Error{Status: status, Message: strings.TrimSpace(env.Message)}
		}
		payload = env.Data
	}
	if out == nil || len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type authPayload struct {
	Token       *Token `json:"token"`
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login exchanges credentials for a token and the user profile.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	req, err := jsonCall(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	return c.authenticate(ctx, req)
}

// Register creates an account and returns its token and profile.
func (c *Client) Register(ctx context.Context, email, username, password string) (AuthResult, error) {
	req, err := jsonCall(http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	return c.authenticate(ctx, req)
}

func (c *Client) authenticate(ctx context.Context, req call) (AuthResult, error) {
	var payload authPayload
	if err := c.do(ctx, req, &payload); err != nil {
		return AuthResult{}, err
	}
	result := AuthResult{User: payload.User}
	if payload.Token != nil {
		result.Token = *payload.Token
	} else {
		result.Token = Token{AccessToken: payload.AccessToken, TokenType: payload.TokenType, ExpiresIn: payload.ExpiresIn}
	}
	if result.Token.AccessToken == "" {
		return AuthResult{}, errors.New("auth response carried no access token")
	}
	if result.User == nil {
		user, err := c.me(ctx, result.Token.AccessToken)
		if err != nil {
			return AuthResult{}, fmt.Errorf("load profile: %w", err)
		}
		result.User = &user
	}
	return result, nil
}

// Logout tells the backend the session is over.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/logout"}, nil)
}

// Me returns the profile of the current token's owner.
func (c *Client) Me(ctx context.Context) (User, error) {
	return c.me(ctx, "")
}

func (c *Client) me(ctx context.Context, token string) (User, error) {
	var user User
	err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me", token: token}, &user)
	return user, err
}

// ListDocuments returns one page of the caller's library.
func (c *Client) ListDocuments(ctx context.Context, page, pageSize int) (Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	var result Page
	err := c.do(ctx, call{method: http.MethodGet, path: "/documents", query: query}, &result)
	return result, err
}

// GetDocument fetches a single document.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := c.do(ctx, call{method: http.MethodGet, path: "/documents/" + url.PathEscape(id)}, &doc)
	return doc, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/documents/" + url.PathEscape(id)}, nil)
}

// UploadRequest describes a file to send to POST /documents.
type UploadRequest struct {
	FileName string
	Title    string
	Content  io.Reader
}

// UploadDocument streams the file as multipart form data.
func (c *Client) UploadDocument(ctx context.Context, upload UploadRequest) (Document, error) {
	if upload.Content == nil {
		return Document{}, errors.New("upload content is required")
	}
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		err := writeUploadForm(form, upload)
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	var doc Document
	err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/documents",
		body:        pr,
		contentType: form.FormDataContentType(),
	}, &doc)
	_ = pr.Close()
	return doc, err
}

func writeUploadForm(form *multipart.Writer, upload UploadRequest) error {
	if upload.Title != "" {
		if err := form.WriteField("title", upload.Title); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", upload.FileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, upload.Content)
	return err
}

// GetSummary returns the stored summary; ErrNotFound when none exists yet.
func (c *Client) GetSummary(ctx context.Context, id string, depth Depth) (Summary, error) {
	query := url.Values{}
	if depth != "" {
		query.Set("depth", string(depth))
	}
	var summary Summary
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/documents/" + url.PathEscape(id) + "/summary",
		query:  query,
	}, &summary)
	return summary, err
}

// GenerateSummary asks the backend to (re)generate a summary. Generation is
// asynchronous; poll GetSummary for the result.
func (c *Client) GenerateSummary(ctx context.Context, id string, depth Depth) error {
	req, err := jsonCall(http.MethodPost, "/documents/"+url.PathEscape(id)+"/summary", map[string]string{
		"depth": string(depth),
	})
	if err != nil {
		return err
	}
	req.query = url.Values{"depth": []string{string(depth)}}
	return c.do(ctx, req, nil)
}
