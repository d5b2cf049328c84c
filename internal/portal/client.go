// Package portal is the HTTP client of the recruitment portal service.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"talentline/internal/domain"
)

const (
	DefaultBasePath = "v0"
	DefaultTimeout  = 15 * time.Second
)

// Multipart part names of an application submission.
const (
	PartData      = "data"
	PartResume    = "resume"
	PartAcademics = "academics"
)

// Client talks to the portal. The bearer token is attached to every call
// and dropped as soon as the portal answers 401.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration

	mu             sync.RWMutex
	token          string
	onUnauthorized func(error)
	log            *slog.Logger
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.Timeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTPClient = h }
}

func WithBasePath(p string) Option {
	return func(c *Client) { c.BasePath = p }
}

// WithUnauthorizedHook is called after the token has been cleared because of
// an auth failure, so the caller can send the user back to sign-in.
func WithUnauthorizedHook(fn func(error)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:  baseURL,
		BasePath: DefaultBasePath,
		Timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Submit posts one application as multipart: the JSON field bundle plus the
// resume and, when present, the academics file.
func (c *Client) Submit(ctx context.Context, sub domain.Submission) (domain.Confirmation, error) {
	if !sub.Resume.Present() {
		return domain.Confirmation{}, &APIError{StatusCode: http.StatusBadRequest, Code: "missing_resume", Message: "resume is required"}
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeJSONPart(mw, PartData, sub.Fields); err != nil {
		return domain.Confirmation{}, err
	}
	if err := writeFilePart(mw, PartResume, sub.Resume); err != nil {
		return domain.Confirmation{}, err
	}
	if sub.Academics.Present() {
		if err := writeFilePart(mw, PartAcademics, sub.Academics); err != nil {
			return domain.Confirmation{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return domain.Confirmation{}, err
	}
	var resp domain.Confirmation
	err := c.send(ctx, "submit application", http.MethodPost, "applications", mw.FormDataContentType(), &buf, false, &resp)
	return resp, err
}

func writeJSONPart(mw *multipart.Writer, name string, data json.RawMessage) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, name))
	h.Set("Content-Type", "application/json")
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeFilePart(mw *multipart.Writer, name string, a *domain.Attachment) error {
	ct := a.ContentType
	if ct == "" {
		ct = http.DetectContentType(a.Data)
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, name, escapeQuotes(a.Filename)))
	h.Set("Content-Type", ct)
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = w.Write(a.Data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// ListCandidates fetches one page of a department's candidates at stage.
func (c *Client) ListCandidates(ctx context.Context, department string, stage domain.Stage, page, pageSize int) (domain.CandidatePage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	endpoint := fmt.Sprintf("departments/%s/stages/%s/candidates", url.PathEscape(department), stage.Slug())
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp domain.CandidatePage
	err := c.do(ctx, "list candidates", http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GetCandidate(ctx context.Context, applicantID string) (domain.Candidate, error) {
	var resp domain.Candidate
	err := c.do(ctx, "get candidate", http.MethodGet, "candidates/"+url.PathEscape(applicantID), nil, &resp)
	return resp, err
}

// Move asks the portal to clear the candidate into the target stage or to
// reject them at their current one.
func (c *Client) Move(ctx context.Context, req domain.MoveRequest) error {
	body := map[string]any{"outcome": string(req.Outcome)}
	if req.TargetStage != nil {
		body["target_stage"] = req.TargetStage.Slug()
	}
	endpoint := fmt.Sprintf("candidates/%s/move", url.PathEscape(req.ApplicantID))
	return c.do(ctx, "move candidate", http.MethodPost, endpoint, body, nil)
}

func (c *Client) Notify(ctx context.Context, n domain.Notification) error {
	body := map[string]any{
		"email":   n.Email,
		"message": n.Message,
		"outcome": string(n.Outcome),
	}
	if n.ApplicantID != "" {
		body["applicant_id"] = n.ApplicantID
	}
	if n.Link != "" {
		body["link"] = n.Link
	}
	return c.do(ctx, "send notification", http.MethodPost, "notifications", body, nil)
}

// StageCounts returns active, rejected and accepted totals per stage.
func (c *Client) StageCounts(ctx context.Context, department string) ([]domain.StageCount, error) {
	var resp struct {
		Items []domain.StageCount `json:"items"`
	}
	err := c.do(ctx, "stage counts", http.MethodGet, fmt.Sprintf("departments/%s/counts", url.PathEscape(department)), nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	contentType := ""
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		contentType = "application/json"
	}
	return c.send(ctx, op, method, endpoint, contentType, &buf, true, out)
}

func (c *Client) send(ctx context.Context, op, method, endpoint, contentType string, body io.Reader, needsAuth bool, out any) error {
	token := c.Token()
	if needsAuth && token == "" {
		err := fmt.Errorf("%s: %w: not signed in", op, ErrUnauthorized)
		c.unauthorized(err)
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.log.Warn("portal request failed", "op", op, "err", err)
		return &ConnectivityError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("portal request", "op", op, "status", resp.StatusCode, "latency", time.Since(start))
	if resp.StatusCode >= 300 {
		apiErr := decodeError(resp)
		if resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized(apiErr)
		}
		return apiErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func (c *Client) unauthorized(err error) {
	c.mu.Lock()
	c.token = ""
	hook := c.onUnauthorized
	c.mu.Unlock()
	c.log.Warn("portal credentials cleared", "err", err)
	if hook != nil {
		hook(err)
	}
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
