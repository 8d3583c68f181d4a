package youtrack

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/ytm/internal/models"
)

// Field selections sent with every request. YouTrack returns only what is
// asked for, so these define the wire shape of everything downstream.
const (
	tagFields     = "id,name,owner(id,login,name)"
	issueFields   = "id,idReadable,summary,description,created,updated,project(id,shortName,name),reporter(id,login,name),tags(id,name,owner(id,login,name))"
	projectFields = "id,name,shortName,description,archived"
	userFields    = "id,login,name,email"

	// findTagPage bounds the candidate page fetched when resolving an
	// exact tag name through the query filter.
	findTagPage = 100

	defaultTimeout = 30 * time.Second
)

// APIError is a non-2xx response from the YouTrack API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a YouTrack instance over its REST API using a permanent
// token. The zero value is not usable; create one with New.
type Client struct {
	BaseURL    string // instance URL including the /api suffix
	Token      string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.HTTPClient.Timeout = d
	}
}

// WithInsecureTLS skips certificate verification, for self-hosted instances
// behind self-signed certificates.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// New creates a client for the given instance URL. The /api suffix is
// appended when missing, so both "https://x.youtrack.cloud" and
// "https://x.youtrack.cloud/api" work.
func New(baseURL, token string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}

	c := &Client{
		BaseURL:    base,
		Token:      token,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newRequestID generates a ULID for request log correlation.
func newRequestID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// do sends one API request and returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := newRequestID()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	slog.Debug("youtrack api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
	)

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// decodeAny parses JSON keeping numbers as json.Number, so epoch millisecond
// fields survive re-encoding without float conversion.
func decodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return v, nil
}

// --- Tag directory ---

// ListTags returns tags owned by or visible to the token's user. Query and
// limit are passed to the API unaltered.
func (c *Client) ListTags(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	q := url.Values{}
	q.Set("fields", tagFields)
	q.Set("$top", strconv.Itoa(limit))
	if query != "" {
		q.Set("query", query)
	}

	data, err := c.do(ctx, http.MethodGet, "/tags", q, nil)
	if err != nil {
		return nil, err
	}

	var tags []models.Tag
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}
	return tags, nil
}

// FindTagByName resolves an exact tag name. YouTrack has no exact-match
// endpoint, so this filters a query page and scans it case-sensitively.
// A missing tag is (nil, nil).
func (c *Client) FindTagByName(ctx context.Context, name string) (*models.Tag, error) {
	tags, err := c.ListTags(ctx, name, findTagPage)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if tags[i].Name == name {
			return &tags[i], nil
		}
	}
	return nil, nil
}

// --- Issue tag store ---

// IssueTags returns the tags currently on an issue.
func (c *Client) IssueTags(ctx context.Context, issueID string) ([]models.Tag, error) {
	q := url.Values{}
	q.Set("fields", tagFields)

	data, err := c.do(ctx, http.MethodGet, "/issues/"+url.PathEscape(issueID)+"/tags", q, nil)
	if err != nil {
		return nil, err
	}

	var tags []models.Tag
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("parse issue tags: %w", err)
	}
	return tags, nil
}

// AddTag tags the issue with an existing tag. The tag endpoint answers with
// the tag entity only, so the updated issue is fetched for the caller.
func (c *Client) AddTag(ctx context.Context, issueID, tagID string) (any, error) {
	q := url.Values{}
	q.Set("fields", tagFields)

	if _, err := c.do(ctx, http.MethodPost, "/issues/"+url.PathEscape(issueID)+"/tags", q, map[string]string{"id": tagID}); err != nil {
		return nil, err
	}
	return c.GetIssue(ctx, issueID)
}

// RemoveTag untags the issue. A 404 means the tag is not on the issue, which
// is a refusal, not an error.
func (c *Client) RemoveTag(ctx context.Context, issueID, tagID string) (bool, error) {
	_, err := c.do(ctx, http.MethodDelete, "/issues/"+url.PathEscape(issueID)+"/tags/"+url.PathEscape(tagID), nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetTags replaces the issue's tag set with exactly the given ids, in order,
// and returns the updated issue.
func (c *Client) SetTags(ctx context.Context, issueID string, tagIDs []string) (any, error) {
	refs := make([]map[string]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		refs = append(refs, map[string]string{"id": id})
	}

	q := url.Values{}
	q.Set("fields", issueFields)

	data, err := c.do(ctx, http.MethodPost, "/issues/"+url.PathEscape(issueID), q, map[string]any{"tags": refs})
	if err != nil {
		return nil, err
	}
	return decodeAny(data)
}

// ClearTags removes every tag from the issue.
func (c *Client) ClearTags(ctx context.Context, issueID string) (any, error) {
	return c.SetTags(ctx, issueID, nil)
}

// --- Passthrough reads ---

// GetIssue fetches an issue with the standard field selection, untyped so
// the response reaches the agent exactly as YouTrack shaped it.
func (c *Client) GetIssue(ctx context.Context, issueID string) (any, error) {
	q := url.Values{}
	q.Set("fields", issueFields)

	data, err := c.do(ctx, http.MethodGet, "/issues/"+url.PathEscape(issueID), q, nil)
	if err != nil {
		return nil, err
	}
	return decodeAny(data)
}

// ListProjects returns project summaries.
func (c *Client) ListProjects(ctx context.Context, limit int) ([]models.Project, error) {
	q := url.Values{}
	q.Set("fields", projectFields)
	q.Set("$top", strconv.Itoa(limit))

	data, err := c.do(ctx, http.MethodGet, "/admin/projects", q, nil)
	if err != nil {
		return nil, err
	}

	var projects []models.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parse projects: %w", err)
	}
	return projects, nil
}

// CurrentUser returns the profile behind the token. Used as the connectivity
// check for `ytm status`.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	q := url.Values{}
	q.Set("fields", userFields)

	data, err := c.do(ctx, http.MethodGet, "/users/me", q, nil)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parse user: %w", err)
	}
	return &user, nil
}
