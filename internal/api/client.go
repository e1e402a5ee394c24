package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/idilsaglam/dayplan/internal/model"
)

// CSRFHeader carries the csrf token on every mutating request.
const CSRFHeader = "X-CSRFToken"

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if b := strings.TrimSpace(e.Body); b != "" {
		msg += ": " + b
	}
	return msg
}

// Client is a thin JSON client for the planner REST API.
type Client struct {
	rc   *resty.Client
	csrf string
}

type Option func(*Client)

// WithToken authenticates every request with "Authorization: Token <token>".
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.rc.SetAuthScheme("Token").SetAuthToken(token)
		}
	}
}

// WithCSRFToken sets the csrf token used when a call doesn't bring its own.
func WithCSRFToken(token string) Option {
	return func(c *Client) { c.csrf = token }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.rc.SetTimeout(d)
		}
	}
}

// WithLogger routes resty's own warnings and debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.rc.SetLogger(l)
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		rc: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchJSON GETs path and decodes the JSON answer into out.
func (c *Client) FetchJSON(ctx context.Context, path string, out any) error {
	r := c.rc.R().SetContext(ctx)
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Get(path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", http.MethodGet, path, err)
	}
	if resp.IsError() {
		return statusError(http.MethodGet, path, resp)
	}
	return nil
}

// PostJSON sends body as JSON with the given method (POST when empty).
// csrfToken overrides the client's default token for this call.
func (c *Client) PostJSON(ctx context.Context, path string, body any, csrfToken, method string, out any) error {
	if method == "" {
		method = http.MethodPost
	}
	if body == nil {
		body = map[string]string{}
	}
	if csrfToken == "" {
		csrfToken = c.csrf
	}
	r := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if csrfToken != "" {
		r.SetHeader(CSRFHeader, csrfToken)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return statusError(method, path, resp)
	}
	return nil
}

func statusError(method, path string, resp *resty.Response) error {
	return &StatusError{Method: method, Path: path, Code: resp.StatusCode(), Body: resp.String()}
}

// ListPath is the day-scoped, user-scoped collection path of a kind.
func ListPath(user string, kind model.Kind, day string) string {
	return fmt.Sprintf("/api/users/%s/%s/%s/", url.PathEscape(user), kind.Resource(), day)
}

// EntryPath addresses one entry inside ListPath.
func EntryPath(user string, kind model.Kind, day string, id int) string {
	return fmt.Sprintf("%s%d/", ListPath(user, kind, day), id)
}
