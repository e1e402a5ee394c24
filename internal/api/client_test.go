package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/idilsaglam/dayplan/internal/model"
)

type seenRequest struct {
	Method string
	Path   string
	CSRF   string
	Auth   string
	Type   string
	Body   string
}

func recordingServer(t *testing.T, status int, reply string) (*httptest.Server, func() []seenRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []seenRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			CSRF:   r.Header.Get(CSRFHeader),
			Auth:   r.Header.Get("Authorization"),
			Type:   r.Header.Get("Content-Type"),
			Body:   string(b),
		})
		mu.Unlock()
		if reply != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []seenRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]seenRequest(nil), seen...)
	}
}

func TestFetchJSONDecodes(t *testing.T) {
	t.Parallel()

	srv, seen := recordingServer(t, http.StatusOK, `[{"id":1,"order":0,"title":"A","completed":false}]`)
	c := New(srv.URL, WithToken("Secret"))

	var out []model.Entry
	if err := c.FetchJSON(context.Background(), "/api/users/jane/target/2026-10-19/", &out); err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if len(out) != 1 || out[0].Title != "A" {
		t.Fatalf("unexpected decode: %+v", out)
	}
	reqs := seen()
	if len(reqs) != 1 || reqs[0].Method != http.MethodGet {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
	if reqs[0].Auth != "Token Secret" {
		t.Fatalf("auth header: %q", reqs[0].Auth)
	}
}

func TestPostJSONSendsCSRFAndMethod(t *testing.T) {
	t.Parallel()

	srv, seen := recordingServer(t, http.StatusOK, `{"id":3,"order":1,"title":"B"}`)
	c := New(srv.URL, WithCSRFToken("default-token"))

	var out model.Entry
	err := c.PostJSON(context.Background(), "/api/users/jane/target/2026-10-19/3/", map[string]string{"title": "B"}, "", http.MethodPut, &out)
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.ID != 3 {
		t.Fatalf("decode: %+v", out)
	}
	if err := c.PostJSON(context.Background(), "/x/", nil, "form-token", "", nil); err != nil {
		t.Fatalf("PostJSON default method: %v", err)
	}

	reqs := seen()
	if len(reqs) != 2 {
		t.Fatalf("want 2 requests, got %d", len(reqs))
	}
	if reqs[0].Method != http.MethodPut || reqs[0].CSRF != "default-token" {
		t.Fatalf("first request: %+v", reqs[0])
	}
	if !strings.HasPrefix(reqs[0].Type, "application/json") {
		t.Fatalf("content type: %q", reqs[0].Type)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(reqs[0].Body), &body); err != nil || body["title"] != "B" {
		t.Fatalf("body: %q (%v)", reqs[0].Body, err)
	}
	if reqs[1].Method != http.MethodPost || reqs[1].CSRF != "form-token" || strings.TrimSpace(reqs[1].Body) != "{}" {
		t.Fatalf("second request: %+v", reqs[1])
	}
}

func TestStatusErrorCarriesCode(t *testing.T) {
	t.Parallel()

	srv, _ := recordingServer(t, http.StatusBadRequest, `{"error":"nope"}`)
	c := New(srv.URL)

	err := c.PostJSON(context.Background(), "/x/", map[string]string{}, "", http.MethodPost, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusBadRequest || !strings.Contains(se.Error(), "nope") {
		t.Fatalf("unexpected status error: %v", se)
	}
}

func TestPaths(t *testing.T) {
	t.Parallel()

	if got := ListPath("jane doe", model.KindTarget, "2026-10-19"); got != "/api/users/jane%20doe/target/2026-10-19/" {
		t.Fatalf("ListPath: %q", got)
	}
	if got := EntryPath("jane", model.KindAppointment, "2026-10-19", 12); got != "/api/users/jane/appointments/2026-10-19/12/" {
		t.Fatalf("EntryPath: %q", got)
	}
}
