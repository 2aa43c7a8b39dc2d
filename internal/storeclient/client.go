// Package storeclient is the request/response bridge to the backing quiz
// store API. The core only ever talks to the store through the Auth,
// QuizStore and BookStore interfaces; Client implements all three over HTTP.
package storeclient

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
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
)

// TeacherIdentity is what a successful login returns.
type TeacherIdentity struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Question is a single quiz question in store format.
type Question struct {
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Timer         int      `json:"timer"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer int      `json:"correctAnswer,omitempty"` // 1-based
}

// Quiz is the payload of a question submission.
type Quiz struct {
	ServerID  int        `json:"serverID"`
	NamaGuru  string     `json:"namaGuru"`
	IDLobby   string     `json:"idLobby"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// AnswerItem is one answered question.
type AnswerItem struct {
	SelectedAnswer *int   `json:"selectedAnswer,omitempty"`
	EssayAnswer    string `json:"essayAnswer,omitempty"`
}

// Answer is the payload of an answer submission.
type Answer struct {
	KodeSoal  string       `json:"kodeSoal"`
	NamaSiswa string       `json:"namaSiswa"`
	IDLobby   string       `json:"idLobby"`
	Jawaban   []AnswerItem `json:"jawaban"`
}

// Book is one catalog entry.
type Book struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Category    string `json:"category,omitempty"`
	Grade       string `json:"grade,omitempty"`
	Description string `json:"description,omitempty"`
	DownloadURL string `json:"downloadUrl"`
}

// Auth is the credential check the lobby-creation flow delegates to.
type Auth interface {
	Authenticate(ctx context.Context, username, password string) (*TeacherIdentity, error)
}

// QuizStore relays question and answer submissions.
type QuizStore interface {
	SubmitQuestion(ctx context.Context, quiz Quiz) (code string, err error)
	SubmitAnswer(ctx context.Context, answer Answer) (id string, err error)
}

// BookStore serves the book catalog.
type BookStore interface {
	Lookup(ctx context.Context, id string) (downloadURL string, err error)
	List(ctx context.Context, category string) ([]Book, error)
	Search(ctx context.Context, term string) ([]Book, error)
}

const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	data []byte
	at   time.Time
}

// Client talks to the store API over HTTP. GET responses are cached for five
// minutes; the book catalog barely changes within a session.
type Client struct {
	base string
	http *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: timeout},
		cache: make(map[string]cacheEntry),
	}
}

var _ Auth = (*Client)(nil)
var _ QuizStore = (*Client)(nil)
var _ BookStore = (*Client)(nil)

func (c *Client) Authenticate(ctx context.Context, username, password string) (*TeacherIdentity, error) {
	payload := map[string]string{"username": username, "password": password}
	var out TeacherIdentity
	if err := c.post(ctx, "/login-game", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitQuestion(ctx context.Context, quiz Quiz) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	if err := c.post(ctx, "/submit-soal", map[string]any{"data": quiz}, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, answer Answer) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/submit-jawaban", map[string]any{"data": answer}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Lookup(ctx context.Context, id string) (string, error) {
	var out struct {
		DownloadURL string `json:"downloadUrl"`
	}
	if err := c.getCached(ctx, "/download-buku/"+url.PathEscape(id), &out); err != nil {
		return "", err
	}
	return out.DownloadURL, nil
}

func (c *Client) List(ctx context.Context, category string) ([]Book, error) {
	var out []Book
	if category == "" {
		category = "all"
	}
	err := c.getCached(ctx, "/list-buku/"+url.PathEscape(category), &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, term string) ([]Book, error) {
	var out []Book
	err := c.getCached(ctx, "/search-buku/"+url.PathEscape(term), &out)
	return out, err
}

// ─────────────────────────────── transport ───────────────────────────────────

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getCached(ctx context.Context, path string, out any) error {
	c.mu.Lock()
	e, ok := c.cache[path]
	if ok && time.Since(e.at) < cacheTTL {
		data := e.data
		c.mu.Unlock()
		return json.Unmarshal(data, out)
	}
	if ok {
		delete(c.cache, path)
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	raw, err := c.doRaw(req)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cache[path] = cacheEntry{data: raw, at: time.Now()}
	c.mu.Unlock()
	return json.Unmarshal(raw, out)
}

func (c *Client) do(req *http.Request, out any) error {
	raw, err := c.doRaw(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		zap.L().Warn("store.request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Path),
			zap.Error(err),
		)
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	zap.L().Debug("store.request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Path),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case res.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case res.StatusCode >= 400:
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return nil, errors.New(e.Error)
		}
		return nil, fmt.Errorf("store returned status %d", res.StatusCode)
	}
	return raw, nil
}
