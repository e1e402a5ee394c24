package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/dayplan/internal/model"
	"github.com/idilsaglam/dayplan/internal/planner"
	"github.com/idilsaglam/dayplan/internal/ui"
)

// savedNoticeTTL is how long "… saved." stays up after a request really finished.
const savedNoticeTTL = 5 * time.Second

// Synchronizer is what a pane needs from planner.Synchronizer.
type Synchronizer interface {
	Kind() model.Kind
	Day() string
	List(ctx context.Context) planner.Snapshot
	Save(ctx context.Context, id int, fields model.Fields) (planner.Result, error)
	Remove(ctx context.Context, id int, csrfToken string) (planner.Result, error)
	ToggleCompleted(ctx context.Context, e model.Entry, csrfToken string) (planner.Result, error)
}

type mutation string

const (
	opCreate mutation = "create"
	opUpdate mutation = "update"
	opDelete mutation = "delete"
	opToggle mutation = "toggle"
)

type (
	listedMsg struct{ snaps []planner.Snapshot }
	savedMsg  struct {
		kind model.Kind
		op   mutation
		res  planner.Result
		err  error
	}
	clearStatusMsg struct{ seq int }
)

// pane is one entry kind: its list container, its shared form and its sync state.
type pane struct {
	title    string
	sync     Synchronizer
	list     list.Model
	form     *Form
	inflight bool
	loadErr  error
}

type Options struct {
	Context      context.Context
	Targets      Synchronizer
	Appointments Synchronizer
	User         string
	CSRFToken    string
	Logger       *log.Logger
}

type Model struct {
	ctx    context.Context
	panes  []*pane
	active int
	keys   keyMap

	spinner   spinner.Model
	status    string
	statusErr bool
	statusSeq int

	width, height int
	log           *log.Logger
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := Model{
		ctx:     ctx,
		keys:    newKeyMap(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:   80,
		height:  24,
		log:     logger,
	}
	for _, p := range []struct {
		title string
		s     Synchronizer
	}{{"Targets", opts.Targets}, {"Schedule", opts.Appointments}} {
		if p.s == nil {
			continue
		}
		m.panes = append(m.panes, m.newPane(p.title, p.s, opts.User, opts.CSRFToken))
	}
	m.resize()
	return m
}

func (m Model) newPane(title string, s Synchronizer, user, csrf string) *pane {
	kind := s.Kind()
	l := list.New(nil, entryDelegate{}, 0, 0)
	l.Title = title
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	l.Styles.Title = ui.Current().Title
	l.Styles.HelpStyle = ui.Current().Muted
	l.Styles.PaginationStyle = ui.Current().Muted
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName(kind.Noun(), kind.Noun()+"s")

	keys := m.keys
	if !kind.Toggleable() {
		keys.Toggle.SetEnabled(false)
	}
	l.AdditionalShortHelpKeys = func() []key.Binding { return keys.bindings() }
	l.AdditionalFullHelpKeys = func() []key.Binding { return keys.bindings() }

	return &pane{title: title, sync: s, list: l, form: NewForm(kind, user, csrf)}
}

// Init loads every pane at once.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadAll(), m.spinner.Tick)
}

func (m Model) loadAll() tea.Cmd {
	syncs := make([]Synchronizer, len(m.panes))
	for i, p := range m.panes {
		syncs[i] = p.sync
	}
	ctx := m.ctx
	return func() tea.Msg {
		snaps := make([]planner.Snapshot, len(syncs))
		var g errgroup.Group
		for i, s := range syncs {
			i, s := i, s
			g.Go(func() error {
				snaps[i] = s.List(ctx)
				return nil
			})
		}
		_ = g.Wait()
		return listedMsg{snaps: snaps}
	}
}

func (m Model) reload(p *pane) tea.Cmd {
	s, ctx := p.sync, m.ctx
	return func() tea.Msg { return listedMsg{snaps: []planner.Snapshot{s.List(ctx)}} }
}

func (m *Model) paneFor(kind model.Kind) *pane {
	for _, p := range m.panes {
		if p.sync.Kind() == kind {
			return p
		}
	}
	return nil
}

func (m *Model) current() *pane {
	if len(m.panes) == 0 {
		return nil
	}
	return m.panes[m.active]
}

// apply re-renders a pane from a fresh read.
func (m *Model) apply(snap planner.Snapshot) tea.Cmd {
	p := m.paneFor(snap.Kind)
	if p == nil {
		return nil
	}
	p.loadErr = snap.Err
	return Render(&p.list, snap.Entries)
}

func (m *Model) setStatus(msg string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.status = msg
	m.statusErr = isErr
	seq := m.statusSeq
	return tea.Tick(savedNoticeTTL, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

func (m Model) saving() bool {
	for _, p := range m.panes {
		if p.inflight {
			return true
		}
	}
	return false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case listedMsg:
		var cmds []tea.Cmd
		for _, snap := range msg.snaps {
			cmds = append(cmds, m.apply(snap))
		}
		return m, tea.Batch(cmds...)

	case savedMsg:
		cmd := m.resolve(msg)
		return m, cmd

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		p := m.current()
		if p == nil {
			if key.Matches(msg, m.keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		if p.form.IsOpen() {
			cmd := m.updateForm(p, msg)
			return m, cmd
		}
		return m.dispatch(p, msg)
	}

	if p := m.current(); p != nil {
		if p.form.IsOpen() {
			return m, p.form.Update(msg)
		}
		var cmd tea.Cmd
		p.list, cmd = p.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// dispatch is the single key handler of a pane; it acts on the selected item.
func (m Model) dispatch(p *pane, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if p.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		p.list, cmd = p.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextPane):
		if len(m.panes) > 0 {
			m.active = (m.active + 1) % len(m.panes)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.reload(p)

	case key.Matches(msg, m.keys.Add):
		cmd := p.form.OpenForCreate()
		m.resize()
		return m, cmd

	case key.Matches(msg, m.keys.Edit):
		e, ok := selectedEntry(p.list)
		if !ok {
			return m, nil
		}
		cmd := p.form.OpenForEdit(e.Attrs())
		m.resize()
		return m, cmd

	case key.Matches(msg, m.keys.Delete):
		e, ok := selectedEntry(p.list)
		if !ok {
			return m, nil
		}
		cmd := p.form.OpenForDelete(e.Attrs())
		m.resize()
		return m, cmd

	case key.Matches(msg, m.keys.Toggle) && p.sync.Kind().Toggleable():
		e, ok := selectedEntry(p.list)
		if !ok {
			return m, nil
		}
		if p.inflight {
			cmd := m.setStatus("Still saving, try again in a moment", true)
			return m, cmd
		}
		p.inflight = true
		m.startSaving()
		s, ctx, csrf := p.sync, m.ctx, p.form.csrf
		return m, func() tea.Msg {
			res, err := s.ToggleCompleted(ctx, e, csrf)
			return savedMsg{kind: s.Kind(), op: opToggle, res: res, err: err}
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return m, cmd
}

func (m *Model) updateForm(p *pane, msg tea.KeyMsg) tea.Cmd {
	// nothing in the form moves while its request is out
	if p.inflight {
		return nil
	}
	switch {
	case key.Matches(msg, p.form.keys.Cancel):
		p.form.Close()
		m.resize()
		return nil

	case key.Matches(msg, p.form.keys.Submit):
		cmd := p.form.Submit(m.ctx, p.sync)
		if cmd == nil {
			return nil
		}
		p.inflight = true
		m.startSaving()
		return cmd

	case key.Matches(msg, p.form.keys.Delete):
		cmd := p.form.Delete(m.ctx, p.sync)
		if cmd == nil {
			return nil
		}
		p.inflight = true
		m.startSaving()
		return cmd
	}
	return p.form.Update(msg)
}

// startSaving drops any pending notice; the spinner line shows while a pane is in flight.
func (m *Model) startSaving() {
	m.statusSeq++
	m.status = ""
	m.statusErr = false
}

func (m *Model) resolve(msg savedMsg) tea.Cmd {
	p := m.paneFor(msg.kind)
	if p == nil {
		return nil
	}
	if msg.err != nil {
		m.log.Error("save entry", "kind", msg.kind.Noun(), "op", string(msg.op), "err", msg.err)
		// another mutation of this kind is still out and will resolve on its own
		if errors.Is(msg.err, planner.ErrBusy) {
			return m.setStatus("Still saving, try again in a moment", true)
		}
	}
	p.inflight = false

	if msg.err != nil {
		if msg.op != opToggle && p.form.IsOpen() {
			p.form.Resolve(msg.err)
			m.status = ""
			return nil
		}
		return m.setStatus(fmt.Sprintf("Couldn't save %s: %v", msg.kind.Noun(), msg.err), true)
	}

	cmds := []tea.Cmd{m.apply(msg.res.Snapshot)}
	if msg.op != opToggle {
		p.form.Resolve(nil)
		m.resize()
	}
	cmds = append(cmds, m.setStatus(msg.kind.Label()+" saved.", false))
	return tea.Batch(cmds...)
}

func (m *Model) resize() {
	w, h := m.width, m.height
	for _, p := range m.panes {
		listHeight := h - 6
		if p.form.IsOpen() {
			listHeight -= 4 + 2*len(p.form.names)
		}
		if listHeight < 3 {
			listHeight = 3
		}
		p.list.SetSize(w-4, listHeight)
	}
}

func (m Model) View() string {
	p := m.current()
	if p == nil {
		return panelString("nothing to show")
	}
	t := ui.Current()

	tabs := make([]string, 0, len(m.panes))
	for i, q := range m.panes {
		label := " " + q.title + " "
		if i == m.active {
			label = t.Selected.Render(label)
		} else {
			label = t.Muted.Render(label)
		}
		tabs = append(tabs, label)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "  " + t.Muted.Render(p.sync.Day())

	parts := []string{header}
	if p.loadErr != nil {
		parts = append(parts, t.Muted.Render("couldn't load "+strings.ToLower(p.title)+": "+p.loadErr.Error()))
	}
	parts = append(parts, p.list.View())
	if p.form.IsOpen() {
		parts = append(parts, p.form.View(m.width-4))
	}
	parts = append(parts, m.statusLine())
	return panelString(strings.Join(parts, "\n"))
}

func (m Model) statusLine() string {
	t := ui.Current()
	switch {
	case m.saving():
		return m.spinner.View() + " Saving..."
	case m.status == "":
		return ""
	case m.statusErr:
		return t.Error.Render(m.status)
	default:
		return t.Success.Render(t.SymDone + " " + m.status)
	}
}

func panelString(inner string) string {
	t := ui.Current()
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(inner)
}

// Run starts the TUI and blocks until the user quits.
func Run(opts Options) error {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := p.Run()
	return err
}
