package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"

	"github.com/idilsaglam/dayplan/internal/api"
	"github.com/idilsaglam/dayplan/internal/dateutil"
	"github.com/idilsaglam/dayplan/internal/devserver"
	"github.com/idilsaglam/dayplan/internal/logging"
	"github.com/idilsaglam/dayplan/internal/model"
	"github.com/idilsaglam/dayplan/internal/planner"
)

const testDay = "2026-10-19"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeSync is an in-memory Synchronizer that records every call.
type fakeSync struct {
	mu      sync.Mutex
	kind    model.Kind
	entries []model.Entry
	calls   []string
	fields  []model.Fields
	nextID  int
	saveErr error
}

func newFakeSync(kind model.Kind, entries ...model.Entry) *fakeSync {
	f := &fakeSync{kind: kind, nextID: 100}
	for _, e := range entries {
		e.Kind = kind
		f.entries = append(f.entries, e)
	}
	return f
}

func (f *fakeSync) Kind() model.Kind { return f.kind }
func (f *fakeSync) Day() string      { return testDay }

func (f *fakeSync) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSync) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSync) List(ctx context.Context) planner.Snapshot {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]model.Entry(nil), f.entries...)
	model.SortByOrder(out)
	return planner.Snapshot{Kind: f.kind, Day: testDay, Entries: out}
}

func (f *fakeSync) Save(ctx context.Context, id int, fields model.Fields) (planner.Result, error) {
	if id == 0 {
		f.record("create")
	} else {
		f.record(fmt.Sprintf("update %d", id))
	}
	f.mu.Lock()
	f.fields = append(f.fields, fields.Clone())
	if f.saveErr != nil {
		f.mu.Unlock()
		return planner.Result{}, f.saveErr
	}
	e := model.Entry{Kind: f.kind, ID: id, Title: fields[model.FieldTitle]}
	fmt.Sscan(fields[model.FieldOrder], &e.Order)
	e.Completed = model.Flag(model.ParseBool(fields[model.FieldCompleted]))
	e.TimeFrom, e.TimeUntil = fields[model.FieldTimeFrom], fields[model.FieldTimeUntil]
	if id == 0 {
		e.ID = f.nextID
		f.nextID++
		f.entries = append(f.entries, e)
	} else {
		for i := range f.entries {
			if f.entries[i].ID == id {
				f.entries[i] = e
			}
		}
	}
	f.mu.Unlock()
	return planner.Result{Entry: e, Snapshot: f.List(ctx)}, nil
}

func (f *fakeSync) Remove(ctx context.Context, id int, csrf string) (planner.Result, error) {
	f.record(fmt.Sprintf("delete %d", id))
	f.mu.Lock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	return planner.Result{Snapshot: f.List(ctx)}, nil
}

func (f *fakeSync) ToggleCompleted(ctx context.Context, e model.Entry, csrf string) (planner.Result, error) {
	f.record(fmt.Sprintf("toggle %d completed=%v", e.ID, !bool(e.Completed)))
	f.mu.Lock()
	for i := range f.entries {
		if f.entries[i].ID == e.ID {
			f.entries[i].Completed = !f.entries[i].Completed
			e = f.entries[i]
		}
	}
	f.mu.Unlock()
	return planner.Result{Entry: e, Snapshot: f.List(ctx)}, nil
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func feed(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func titles(l list.Model) []string {
	var out []string
	for _, it := range l.Items() {
		out = append(out, it.(entryItem).entry.Title)
	}
	return out
}

func loaded(t *testing.T, targets, appts *fakeSync) Model {
	t.Helper()
	m := New(Options{Targets: targets, Appointments: appts, User: "jane-doe", CSRFToken: "tok", Logger: logging.Discard()})
	return feed(t, m, m.loadAll()())
}

func TestRenderSortsAndClears(t *testing.T) {
	t.Parallel()

	l := list.New(nil, entryDelegate{}, 40, 10)
	Render(&l, []model.Entry{
		{Kind: model.KindTarget, ID: 2, Order: 1, Title: "A"},
		{Kind: model.KindTarget, ID: 5, Order: 0, Title: "B"},
	})
	if got := titles(l); strings.Join(got, ",") != "B,A" {
		t.Fatalf("render order: %v", got)
	}

	Render(&l, nil)
	if n := len(l.Items()); n != 0 {
		t.Fatalf("empty render should leave no items, got %d", n)
	}
}

func TestOpenForEditPopulatesMatchingFields(t *testing.T) {
	t.Parallel()

	f := NewForm(model.KindTarget, "jane-doe", "tok")
	e := model.Entry{Kind: model.KindTarget, ID: 7, Order: 3, Title: "Read", Completed: true}
	f.OpenForEdit(e.Attrs())

	if !f.IsOpen() || !f.DeleteVisible() {
		t.Fatalf("edit should open the form with delete visible")
	}
	if id, ok := f.Editing(); !ok || id != 7 {
		t.Fatalf("bound id: %d %v", id, ok)
	}
	for name, want := range map[string]string{model.FieldTitle: "Read", model.FieldOrder: "3"} {
		if got, _ := f.Value(name); got != want {
			t.Fatalf("%s: got %q, want %q", name, got, want)
		}
	}

	f.Close()
	if _, ok := f.Editing(); ok || f.IsOpen() {
		t.Fatalf("close should clear the bound id")
	}
	f.OpenForCreate()
	if _, ok := f.Editing(); ok || f.DeleteVisible() {
		t.Fatalf("create should not bind an id or show delete")
	}
	if got, _ := f.Value(model.FieldTitle); got != "" {
		t.Fatalf("create should reset fields, title=%q", got)
	}
}

func TestSubmitBlankMakesNoCall(t *testing.T) {
	t.Parallel()

	s := newFakeSync(model.KindTarget)
	f := NewForm(model.KindTarget, "jane-doe", "tok")
	f.OpenForCreate()

	if cmd := f.Submit(context.Background(), s); cmd != nil {
		t.Fatalf("blank title should not produce a command")
	}
	if f.Err() != model.MsgIncomplete {
		t.Fatalf("error text: %q", f.Err())
	}
	if calls := s.Calls(); len(calls) != 0 {
		t.Fatalf("no calls expected, got %v", calls)
	}
	if !f.IsOpen() {
		t.Fatalf("form should stay open")
	}
}

func TestSubmitAppointmentTimeOrder(t *testing.T) {
	t.Parallel()

	s := newFakeSync(model.KindAppointment)
	f := NewForm(model.KindAppointment, "jane-doe", "tok")
	f.OpenForCreate()
	f.setValue(model.FieldTitle, "Standup")
	f.setValue(model.FieldTimeFrom, "09:00")
	f.setValue(model.FieldTimeUntil, "08:00")

	if cmd := f.Submit(context.Background(), s); cmd != nil {
		t.Fatalf("inverted range should not produce a command")
	}
	if !strings.Contains(f.Err(), "can't finish before it starts") {
		t.Fatalf("error text: %q", f.Err())
	}
	if calls := s.Calls(); len(calls) != 0 {
		t.Fatalf("no calls expected, got %v", calls)
	}
}

func TestEditSubmitUpdatesBoundID(t *testing.T) {
	t.Parallel()

	s := newFakeSync(model.KindTarget, model.Entry{ID: 2, Order: 1, Title: "A", Completed: true})
	f := NewForm(model.KindTarget, "jane-doe", "tok")
	f.OpenForEdit(s.entries[0].Attrs())
	f.setValue(model.FieldTitle, "A+")

	cmd := f.Submit(context.Background(), s)
	if cmd == nil {
		t.Fatalf("valid edit should produce a command")
	}
	msg := cmd().(savedMsg)
	if msg.err != nil || msg.op != opUpdate {
		t.Fatalf("saved: %+v", msg)
	}
	if calls := s.Calls(); len(calls) != 2 || calls[0] != "update 2" || calls[1] != "list" {
		t.Fatalf("calls: %v", calls)
	}
	sent := s.fields[0]
	if sent[model.FieldCompleted] != "true" || sent[model.FieldCSRF] != "tok" || sent[model.FieldUser] != "jane-doe" {
		t.Fatalf("sent fields: %v", sent)
	}
}

func TestAddFlowRefreshesAndCloses(t *testing.T) {
	t.Parallel()

	targets := newFakeSync(model.KindTarget)
	m := loaded(t, targets, newFakeSync(model.KindAppointment))

	m, _ = press(t, m, keyRunes("a"))
	p := m.current()
	if !p.form.IsOpen() {
		t.Fatalf("add should open the form")
	}
	p.form.setValue(model.FieldTitle, "Stretch")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !p.inflight {
		t.Fatalf("submit should be in flight")
	}
	// a second enter while in flight is swallowed
	if _, again := press(t, m, tea.KeyMsg{Type: tea.KeyEnter}); again != nil {
		t.Fatalf("duplicate submit should be ignored")
	}

	m = feed(t, m, cmd())
	if p.form.IsOpen() || p.inflight {
		t.Fatalf("form should close once saved")
	}
	if got := titles(p.list); len(got) != 1 || got[0] != "Stretch" {
		t.Fatalf("list after save: %v", got)
	}
	if m.status != "Day target entry saved." {
		t.Fatalf("status: %q", m.status)
	}
	if calls := targets.Calls(); strings.Join(calls, ",") != "list,create,list" {
		t.Fatalf("calls: %v", calls)
	}
}

func TestToggleFlipsOnlyAfterResolve(t *testing.T) {
	t.Parallel()

	targets := newFakeSync(model.KindTarget, model.Entry{ID: 1, Order: 0, Title: "Walk"})
	m := loaded(t, targets, newFakeSync(model.KindAppointment))
	p := m.current()

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	if cmd == nil {
		t.Fatalf("toggle should produce a command")
	}
	if e, _ := selectedEntry(p.list); bool(e.Completed) {
		t.Fatalf("item flipped before the request resolved")
	}

	m = feed(t, m, cmd())
	if e, _ := selectedEntry(p.list); !bool(e.Completed) {
		t.Fatalf("item should be done after resolve")
	}
	if calls := targets.Calls(); strings.Join(calls, ",") != "list,toggle 1 completed=true,list" {
		t.Fatalf("calls: %v", calls)
	}
	_ = m
}

func TestDeleteFromForm(t *testing.T) {
	t.Parallel()

	targets := newFakeSync(model.KindTarget, model.Entry{ID: 4, Order: 0, Title: "Drop"})
	m := loaded(t, targets, newFakeSync(model.KindAppointment))
	p := m.current()

	m, _ = press(t, m, keyRunes("e"))
	if id, ok := p.form.Editing(); !ok || id != 4 {
		t.Fatalf("edit should bind id 4, got %d %v", id, ok)
	}
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if cmd == nil {
		t.Fatalf("delete should produce a command")
	}
	m = feed(t, m, cmd())

	if p.form.IsOpen() {
		t.Fatalf("form should close after delete")
	}
	if n := len(p.list.Items()); n != 0 {
		t.Fatalf("list should be empty, has %d", n)
	}
	if calls := targets.Calls(); strings.Join(calls, ",") != "list,delete 4,list" {
		t.Fatalf("calls: %v", calls)
	}
	_ = m
}

func TestDeleteUnavailableWhenCreating(t *testing.T) {
	t.Parallel()

	f := NewForm(model.KindTarget, "", "")
	f.OpenForCreate()
	if cmd := f.Delete(context.Background(), newFakeSync(model.KindTarget)); cmd != nil {
		t.Fatalf("delete should need a bound entry")
	}
}

func TestWriteFailureKeepsFormOpen(t *testing.T) {
	t.Parallel()

	targets := newFakeSync(model.KindTarget)
	targets.saveErr = errors.New("connection refused")
	m := loaded(t, targets, newFakeSync(model.KindAppointment))
	p := m.current()

	m, _ = press(t, m, keyRunes("a"))
	p.form.setValue(model.FieldTitle, "Stretch")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = feed(t, m, cmd())

	if !p.form.IsOpen() {
		t.Fatalf("form should stay open after a failed write")
	}
	if !strings.Contains(p.form.Err(), "connection refused") {
		t.Fatalf("error text: %q", p.form.Err())
	}
	if n := len(p.list.Items()); n != 0 {
		t.Fatalf("nothing should be applied, list has %d", n)
	}
	if calls := targets.Calls(); strings.Join(calls, ",") != "list,create" {
		t.Fatalf("no refresh expected after failure, calls: %v", calls)
	}
}

func TestStaleStatusClearIsIgnored(t *testing.T) {
	t.Parallel()

	m := New(Options{Targets: newFakeSync(model.KindTarget), Logger: logging.Discard()})
	m.setStatus("first", false)
	stale := m.statusSeq
	m.setStatus("second", false)

	m = feed(t, m, clearStatusMsg{seq: stale})
	if m.status != "second" {
		t.Fatalf("stale clear removed newer status: %q", m.status)
	}
	m = feed(t, m, clearStatusMsg{seq: m.statusSeq})
	if m.status != "" {
		t.Fatalf("current clear should empty status, got %q", m.status)
	}
}

func TestPaneSwitchAndLoadFailure(t *testing.T) {
	t.Parallel()

	appts := newFakeSync(model.KindAppointment, model.Entry{ID: 9, Title: "Dentist", TimeFrom: "09:00", TimeUntil: "10:00"})
	m := loaded(t, newFakeSync(model.KindTarget), appts)

	m = feed(t, m, listedMsg{snaps: []planner.Snapshot{{Kind: model.KindTarget, Entries: []model.Entry{}, Err: errors.New("offline")}}})
	if !strings.Contains(m.View(), "couldn't load targets") {
		t.Fatalf("view should explain the failed load")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.current().title != "Schedule" {
		t.Fatalf("tab should switch to schedule")
	}
	if !strings.Contains(m.View(), "Dentist") {
		t.Fatalf("schedule view should list the appointment")
	}
}

func TestSubmitAgainstBackend(t *testing.T) {
	t.Parallel()

	backend := devserver.New()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	s := planner.New(model.KindTarget, "jane-doe", api.New(srv.URL), dateutil.Fixed(testDay), planner.WithLogger(logging.Discard()))

	f := NewForm(model.KindTarget, "jane-doe", "tok")
	f.OpenForCreate()
	f.setValue(model.FieldTitle, "Stretch")
	cmd := f.Submit(context.Background(), s)
	if cmd == nil {
		t.Fatalf("valid form should submit")
	}
	msg := cmd().(savedMsg)
	if msg.err != nil {
		t.Fatalf("save: %v", msg.err)
	}

	var got []string
	for _, r := range backend.Requests() {
		got = append(got, r.Method+" "+r.Path)
	}
	want := "POST /api/users/jane-doe/target/2026-10-19/,GET /api/users/jane-doe/target/2026-10-19/"
	if strings.Join(got, ",") != want {
		t.Fatalf("requests: %v", got)
	}
}

func TestDeleteKeyOpensDeletePrompt(t *testing.T) {
	t.Parallel()

	targets := newFakeSync(model.KindTarget, model.Entry{ID: 6, Order: 0, Title: "Call mum"})
	m := loaded(t, targets, newFakeSync(model.KindAppointment))
	p := m.current()

	m, _ = press(t, m, keyRunes("d"))
	if id, ok := p.form.Editing(); !ok || id != 6 {
		t.Fatalf("delete key should bind id 6, got %d %v", id, ok)
	}
	if !p.form.ConfirmingDelete() || !p.form.DeleteVisible() {
		t.Fatalf("delete key should open the form on the delete prompt")
	}
	if !strings.Contains(m.View(), "Delete this target? ctrl+d deletes") {
		t.Fatalf("view should show the delete prompt:\n%s", m.View())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m, _ = press(t, m, keyRunes("e"))
	if p.form.ConfirmingDelete() {
		t.Fatalf("plain edit should not show the delete prompt")
	}
	if calls := targets.Calls(); strings.Join(calls, ",") != "list" {
		t.Fatalf("opening forms should not write, calls: %v", calls)
	}
}

func TestBusyResultKeepsInflight(t *testing.T) {
	t.Parallel()

	m := loaded(t, newFakeSync(model.KindTarget), newFakeSync(model.KindAppointment))
	p := m.current()
	p.inflight = true

	m = feed(t, m, savedMsg{kind: model.KindTarget, op: opCreate, err: planner.ErrBusy})
	if !p.inflight {
		t.Fatalf("a busy result must not clear the guard of the request still out")
	}
	if !strings.Contains(m.status, "Still saving") {
		t.Fatalf("status: %q", m.status)
	}
}
