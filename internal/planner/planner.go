// Package planner keeps one kind of day entries in step with the backend:
// every mutation is followed by a fresh read of the whole day.
package planner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/dayplan/internal/api"
	"github.com/idilsaglam/dayplan/internal/dateutil"
	"github.com/idilsaglam/dayplan/internal/model"
)

var (
	// ErrBusy is returned when a mutation of the same kind is still in flight.
	ErrBusy = errors.New("another change is still being saved")
	// ErrNotToggleable is returned when toggling an entry kind without a completed flag.
	ErrNotToggleable = errors.New("entry kind has no completed flag")
)

// Transport is the HTTP surface the synchronizer needs; *api.Client implements it.
type Transport interface {
	FetchJSON(ctx context.Context, path string, out any) error
	PostJSON(ctx context.Context, path string, body any, csrfToken, method string, out any) error
}

// Snapshot is one read of a day's entries, sorted by order.
// Entries is empty when Err is set; a failed read renders like an empty day.
type Snapshot struct {
	Kind    model.Kind
	Day     string
	Entries []model.Entry
	Err     error
}

// Failed reports whether the read behind the snapshot failed.
func (s Snapshot) Failed() bool { return s.Err != nil }

// Result is what a successful mutation hands back: the entry as the backend
// stored it and the day re-read right after.
type Result struct {
	Entry    model.Entry
	Snapshot Snapshot
}

type Synchronizer struct {
	kind model.Kind
	user string
	api  Transport
	day  dateutil.DayFunc
	log  *log.Logger

	// held for the whole write+refresh of one mutation
	mu sync.Mutex
}

type Option func(*Synchronizer)

func WithLogger(l *log.Logger) Option { return func(s *Synchronizer) { s.log = l } }

func New(kind model.Kind, user string, transport Transport, day dateutil.DayFunc, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		kind: kind,
		user: user,
		api:  transport,
		day:  day,
		log:  log.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("kind", kind.Noun())
	return s
}

func (s *Synchronizer) Kind() model.Kind { return s.kind }

// Day is the calendar day the synchronizer currently works on.
func (s *Synchronizer) Day() string { return s.day() }

// List reads the day's entries. A failed read is logged and returned as an
// empty snapshot carrying the error.
func (s *Synchronizer) List(ctx context.Context) Snapshot {
	day := s.day()
	snap := Snapshot{Kind: s.kind, Day: day}

	var entries []model.Entry
	if err := s.api.FetchJSON(ctx, api.ListPath(s.user, s.kind, day), &entries); err != nil {
		s.log.Error("list entries", "day", day, "err", err)
		snap.Err = fmt.Errorf("list %ss: %w", s.kind.Noun(), err)
		snap.Entries = []model.Entry{}
		return snap
	}
	for i := range entries {
		entries[i].Kind = s.kind
	}
	model.SortByOrder(entries)
	snap.Entries = entries
	s.log.Debug("listed entries", "day", day, "count", len(entries))
	return snap
}

// Create posts a new entry and re-reads the day.
func (s *Synchronizer) Create(ctx context.Context, fields model.Fields) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer s.mu.Unlock()

	day := s.day()
	created, err := s.send(ctx, api.ListPath(s.user, s.kind, day), http.MethodPost, s.body(fields, day), csrf(fields))
	if err != nil {
		return Result{}, fmt.Errorf("create %s: %w", s.kind.Noun(), err)
	}
	s.log.Info("created entry", "id", created.ID, "day", day)
	return Result{Entry: created, Snapshot: s.List(ctx)}, nil
}

// Update replaces the fields of an existing entry and re-reads the day.
func (s *Synchronizer) Update(ctx context.Context, id int, fields model.Fields) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer s.mu.Unlock()
	return s.update(ctx, id, fields)
}

func (s *Synchronizer) update(ctx context.Context, id int, fields model.Fields) (Result, error) {
	if id <= 0 {
		return Result{}, fmt.Errorf("update %s: missing id", s.kind.Noun())
	}
	day := s.day()
	updated, err := s.send(ctx, api.EntryPath(s.user, s.kind, day, id), http.MethodPut, s.body(fields, day), csrf(fields))
	if err != nil {
		return Result{}, fmt.Errorf("update %s %d: %w", s.kind.Noun(), id, err)
	}
	s.log.Info("updated entry", "id", id, "day", day)
	return Result{Entry: updated, Snapshot: s.List(ctx)}, nil
}

// Save creates when id is zero and updates otherwise.
func (s *Synchronizer) Save(ctx context.Context, id int, fields model.Fields) (Result, error) {
	if id == 0 {
		return s.Create(ctx, fields)
	}
	return s.Update(ctx, id, fields)
}

// Remove deletes an entry and re-reads the day.
func (s *Synchronizer) Remove(ctx context.Context, id int, csrfToken string) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer s.mu.Unlock()

	if id <= 0 {
		return Result{}, fmt.Errorf("delete %s: missing id", s.kind.Noun())
	}
	day := s.day()
	err := s.api.PostJSON(ctx, api.EntryPath(s.user, s.kind, day, id), map[string]string{}, csrfToken, http.MethodDelete, nil)
	if err != nil {
		return Result{}, fmt.Errorf("delete %s %d: %w", s.kind.Noun(), id, err)
	}
	s.log.Info("deleted entry", "id", id, "day", day)
	return Result{Snapshot: s.List(ctx)}, nil
}

// ToggleCompleted flips the completed flag of a target and saves the full field set.
// The caller should only reflect the new state once this returns.
func (s *Synchronizer) ToggleCompleted(ctx context.Context, e model.Entry, csrfToken string) (Result, error) {
	if !s.kind.Toggleable() {
		return Result{}, ErrNotToggleable
	}
	if !s.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer s.mu.Unlock()

	e.Kind = s.kind
	fields := e.Attrs()
	fields[model.FieldCompleted] = strconv.FormatBool(!bool(e.Completed))
	if csrfToken != "" {
		fields[model.FieldCSRF] = csrfToken
	}
	return s.update(ctx, e.ID, fields)
}

func (s *Synchronizer) send(ctx context.Context, path, method string, body map[string]string, csrfToken string) (model.Entry, error) {
	var out model.Entry
	if err := s.api.PostJSON(ctx, path, body, csrfToken, method, &out); err != nil {
		return model.Entry{}, err
	}
	out.Kind = s.kind
	return out, nil
}

func (s *Synchronizer) body(fields model.Fields, day string) map[string]string {
	body := model.Payload(s.kind, fields)
	if s.kind == model.KindAppointment {
		body[model.FieldDate] = day
	}
	return body
}

func csrf(fields model.Fields) string { return fields[model.FieldCSRF] }
