// Package devserver is an in-memory implementation of the planner REST API,
// used for local runs and as the backend in tests.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/idilsaglam/dayplan/internal/dateutil"
	"github.com/idilsaglam/dayplan/internal/model"
)

// Request is one call the server has seen.
type Request struct {
	Method string
	Path   string
}

type bucket struct {
	user     string
	resource model.Kind
	date     string
}

type record struct {
	id        int
	order     int
	title     string
	completed bool
	from      int
	until     int
}

type Server struct {
	mu       sync.Mutex
	nextID   int
	buckets  map[bucket][]record
	requests []Request

	requireCSRF bool
	log         *log.Logger
	engine      *gin.Engine
}

type Option func(*Server)

// WithLogger logs one line per request.
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.log = l } }

// WithoutCSRF accepts mutating requests that carry no csrf header.
func WithoutCSRF() Option { return func(s *Server) { s.requireCSRF = false } }

func New(opts ...Option) *Server {
	s := &Server{
		nextID:      1,
		buckets:     map[bucket][]record{},
		requireCSRF: true,
	}
	for _, o := range opts {
		o(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.recordRequests())
	day := r.Group("/api/users/:user/:resource/:date", s.scope())
	day.GET("/", s.list)
	day.POST("/", s.csrf(), s.create)
	day.PUT("/:id/", s.csrf(), s.update)
	day.DELETE("/:id/", s.csrf(), s.remove)
	s.engine = r
	return s
}

// Handler exposes the gin engine, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Requests returns every request seen so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// ResetRequests forgets the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Seed stores entries as-is and returns them with their assigned ids.
func (s *Server) Seed(user string, kind model.Kind, day string, entries ...model.Entry) []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := bucket{user: user, resource: kind, date: day}
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		rec := record{id: s.nextID, order: e.Order, title: e.Title, completed: bool(e.Completed)}
		rec.from, _ = model.ParseClock(e.TimeFrom)
		rec.until, _ = model.ParseClock(e.TimeUntil)
		s.nextID++
		s.buckets[b] = append(s.buckets[b], rec)
		e.ID = rec.id
		e.Kind = kind
		out = append(out, e)
	}
	return out
}

func (s *Server) recordRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: c.Request.Method, Path: c.Request.URL.Path})
		s.mu.Unlock()
		c.Next()
		if s.log != nil {
			s.log.Info("request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"took", time.Since(start))
		}
	}
}

func (s *Server) scope() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := model.Kind(c.Param("resource"))
		if kind != model.KindTarget && kind != model.KindAppointment {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		date := c.Param("date")
		if _, err := time.Parse(dateutil.Layout, date); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Please use YYYY-MM-DD."})
			return
		}
		c.Set("bucket", bucket{user: c.Param("user"), resource: kind, date: date})
		c.Next()
	}
}

func (s *Server) csrf() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.requireCSRF && strings.TrimSpace(c.GetHeader("X-CSRFToken")) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "CSRF Failed: CSRF token missing."})
			return
		}
		c.Next()
	}
}

func (s *Server) list(c *gin.Context) {
	b := c.MustGet("bucket").(bucket)
	s.mu.Lock()
	recs := append([]record(nil), s.buckets[b]...)
	s.mu.Unlock()

	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		out = append(out, render(b, r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) create(c *gin.Context) {
	b := c.MustGet("bucket").(bucket)
	rec, err := decode(c, b.resource)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	rec.id = s.nextID
	s.nextID++
	s.buckets[b] = append(s.buckets[b], rec)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, render(b, rec))
}

func (s *Server) update(c *gin.Context) {
	b := c.MustGet("bucket").(bucket)
	id, ok := entryID(c)
	if !ok {
		return
	}
	rec, err := decode(c, b.resource)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec.id = id

	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.buckets[b]
	for i := range recs {
		if recs[i].id == id {
			recs[i] = rec
			c.JSON(http.StatusOK, render(b, rec))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func (s *Server) remove(c *gin.Context) {
	b := c.MustGet("bucket").(bucket)
	id, ok := entryID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.buckets[b]
	for i := range recs {
		if recs[i].id == id {
			s.buckets[b] = append(recs[:i:i], recs[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func entryID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

// decode re-validates the submitted fields; clients validate too, but this is the trust boundary.
func decode(c *gin.Context, kind model.Kind) (record, error) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		return record{}, errors.New("invalid JSON body")
	}
	get := func(k string) string {
		v, ok := body[k]
		if !ok || v == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(v))
	}

	rec := record{title: get(model.FieldTitle)}
	if rec.title == "" {
		return record{}, errors.New("title: This field may not be blank.")
	}
	switch kind {
	case model.KindTarget:
		n, err := strconv.Atoi(get(model.FieldOrder))
		if err != nil {
			return record{}, errors.New("order: A valid integer is required.")
		}
		rec.order = n
		rec.completed = model.ParseBool(get(model.FieldCompleted))
	case model.KindAppointment:
		from, err := model.ParseHour(get(model.FieldTimeFrom))
		if err != nil {
			return record{}, errors.New("time_from: Time has wrong format.")
		}
		until, err := model.ParseHour(get(model.FieldTimeUntil))
		if err != nil {
			return record{}, errors.New("time_until: Time has wrong format.")
		}
		if until <= from {
			return record{}, errors.New("'From' must start before the time set on 'Until'.")
		}
		rec.from, rec.until = from, until
	}
	return rec, nil
}

func render(b bucket, r record) gin.H {
	h := gin.H{
		"id":    r.id,
		"user":  b.user,
		"title": r.title,
	}
	switch b.resource {
	case model.KindTarget:
		h["order"] = r.order
		h["completed"] = r.completed
		h["created_on"] = b.date
	case model.KindAppointment:
		h["date"] = b.date
		h["time_from"] = model.FormatClock(r.from) + ":00"
		h["time_until"] = model.FormatClock(r.until) + ":00"
	}
	return h
}
