package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/linguadesk/internal/domain/document"
	"github.com/geocoder89/linguadesk/internal/domain/meet"
)

const defaultHTTPTimeout = 15 * time.Second

var ErrNotFound = errors.New("client: not found")

// APIError is a non-2xx answer decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: http %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to the document API on behalf of one signed-in user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.token = token
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login exchanges credentials for an access token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out loginResponse

	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return err
	}

	c.token = out.AccessToken
	return nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]document.Document, error) {
	var out []document.Document
	err := c.do(ctx, http.MethodGet, "/docs", nil, &out)
	return out, err
}

func (c *Client) CreateDocument(ctx context.Context, title string) (document.Document, error) {
	var out document.Document
	err := c.do(ctx, http.MethodPost, "/docs", document.CreateDocumentRequest{Title: title}, &out)
	return out, err
}

func (c *Client) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var out document.Document
	err := c.do(ctx, http.MethodGet, "/docs/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateDocument(ctx context.Context, id string, patch document.Patch) (document.Document, error) {
	var out document.Document
	err := c.do(ctx, http.MethodPut, "/docs/"+url.PathEscape(id), patch, &out)
	return out, err
}

// SaveDocument sends a full title and pages snapshot. It is the autosave write path.
func (c *Client) SaveDocument(ctx context.Context, id, title string, pages []document.Page) error {
	_, err := c.UpdateDocument(ctx, id, document.Patch{Title: &title, Pages: &pages})
	return err
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/docs/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SharedDocument(ctx context.Context, token string) (document.View, error) {
	var out document.View
	err := c.do(ctx, http.MethodGet, "/docs/shared/"+url.PathEscape(token), nil, &out)
	return out, err
}

func (c *Client) CreateMeeting(ctx context.Context, docID *string) (meet.Session, error) {
	var out meet.Session
	err := c.do(ctx, http.MethodPost, "/meet", meet.CreateSessionRequest{DocID: docID}, &out)
	return out, err
}

func (c *Client) ResolveMeeting(ctx context.Context, code string) (meet.View, error) {
	var out meet.View
	err := c.do(ctx, http.MethodGet, "/meet/"+url.PathEscape(code), nil, &out)
	return out, err
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var env errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
