package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/dayplan/internal/model"
	"github.com/idilsaglam/dayplan/internal/ui"
)

type formMode int

const (
	modeCreate formMode = iota
	modeEdit
)

// formState is the view-state of the shared form: what a submit would do.
type formState struct {
	mode    formMode
	entryID int
	pending model.Fields // attributes of the entry being edited
}

var fieldLabels = map[string]string{
	model.FieldTitle:     "Title",
	model.FieldOrder:     "Order",
	model.FieldTimeFrom:  "From",
	model.FieldTimeUntil: "Until",
}

var fieldPlaceholders = map[string]string{
	model.FieldTitle:     "What's the plan?",
	model.FieldOrder:     "0",
	model.FieldTimeFrom:  "09:00",
	model.FieldTimeUntil: "10:00",
}

// Form is the single create/edit form of one entry kind.
type Form struct {
	kind   model.Kind
	names  []string
	inputs []textinput.Model
	focus  int

	open       bool
	showDelete bool
	confirm    bool // opened from the delete key
	state      formState
	err        string

	// hidden fields, sent along like the web form's
	user string
	csrf string

	keys formKeys
	help help.Model
}

func NewForm(kind model.Kind, user, csrf string) *Form {
	f := &Form{
		kind:  kind,
		names: kind.FormFields(),
		user:  user,
		csrf:  csrf,
		keys:  newFormKeys(),
		help:  help.New(),
	}
	for _, name := range f.names {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Placeholder = fieldPlaceholders[name]
		ti.CharLimit = 255
		if name == model.FieldTimeFrom || name == model.FieldTimeUntil {
			ti.CharLimit = 8
		}
		f.inputs = append(f.inputs, ti)
	}
	return f
}

func (f *Form) IsOpen() bool { return f.open }

// Editing returns the bound entry id while an existing entry is being edited.
func (f *Form) Editing() (int, bool) {
	if f.state.mode != modeEdit {
		return 0, false
	}
	return f.state.entryID, true
}

// Err is the user-visible error text, empty when there is none.
func (f *Form) Err() string { return f.err }

func (f *Form) DeleteVisible() bool { return f.showDelete }

// ConfirmingDelete reports whether the form was opened to delete its entry.
func (f *Form) ConfirmingDelete() bool { return f.confirm }

func (f *Form) reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.state = formState{mode: modeCreate}
	f.err = ""
	f.confirm = false
}

// OpenForCreate shows a blank form with no bound entry.
func (f *Form) OpenForCreate() tea.Cmd {
	f.reset()
	if f.kind == model.KindTarget {
		f.setValue(model.FieldOrder, "0")
	}
	f.showDelete = false
	f.open = true
	return f.focusField(0)
}

// OpenForEdit fills every field named like one of attrs and binds the entry id.
func (f *Form) OpenForEdit(attrs model.Fields) tea.Cmd {
	f.reset()
	for name, v := range attrs {
		f.setValue(name, v)
	}
	id, _ := strconv.Atoi(attrs[model.FieldID])
	f.state = formState{mode: modeEdit, entryID: id, pending: attrs.Clone()}
	f.showDelete = true
	f.open = true
	return f.focusField(0)
}

// OpenForDelete is OpenForEdit with the delete action put first.
func (f *Form) OpenForDelete(attrs model.Fields) tea.Cmd {
	cmd := f.OpenForEdit(attrs)
	f.confirm = true
	return cmd
}

// Close hides the form and forgets the bound entry.
func (f *Form) Close() {
	f.open = false
	f.showDelete = false
	f.state = formState{mode: modeCreate}
	f.err = ""
	f.confirm = false
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *Form) setValue(name, v string) bool {
	for i, n := range f.names {
		if n == name {
			f.inputs[i].SetValue(v)
			f.inputs[i].CursorEnd()
			return true
		}
	}
	return false
}

// Value reads one field; ok is false for names the form doesn't have.
func (f *Form) Value(name string) (string, bool) {
	for i, n := range f.names {
		if n == name {
			return f.inputs[i].Value(), true
		}
	}
	return "", false
}

// Values is what a submit sends: every field plus the hidden ones.
func (f *Form) Values() model.Fields {
	out := model.Fields{}
	for i, n := range f.names {
		out[n] = f.inputs[i].Value()
	}
	if f.user != "" {
		out[model.FieldUser] = f.user
	}
	if f.csrf != "" {
		out[model.FieldCSRF] = f.csrf
	}
	return out
}

// Validate reports whether values may be sent, setting the error text if not.
func (f *Form) Validate(values model.Fields) bool {
	if err := model.Validate(f.kind, values); err != nil {
		f.err = err.Error()
		return false
	}
	f.err = ""
	return true
}

// Submit validates and, when valid, returns the command that creates or updates
// the entry and re-reads the day. Invalid input yields no command.
func (f *Form) Submit(ctx context.Context, s Synchronizer) tea.Cmd {
	values := f.Values()
	if !f.Validate(values) {
		return nil
	}
	id := f.state.entryID
	op := opCreate
	if f.state.mode == modeEdit {
		op = opUpdate
		// the form has no completed input; keep whatever the entry had
		if c, ok := f.state.pending[model.FieldCompleted]; ok && f.kind.Toggleable() {
			values[model.FieldCompleted] = c
		}
	}
	kind := f.kind
	return func() tea.Msg {
		res, err := s.Save(ctx, id, values)
		return savedMsg{kind: kind, op: op, res: res, err: err}
	}
}

// Delete removes the bound entry. Only available while editing.
func (f *Form) Delete(ctx context.Context, s Synchronizer) tea.Cmd {
	id, ok := f.Editing()
	if !ok {
		return nil
	}
	kind, csrf := f.kind, f.csrf
	return func() tea.Msg {
		res, err := s.Remove(ctx, id, csrf)
		return savedMsg{kind: kind, op: opDelete, res: res, err: err}
	}
}

// Resolve applies the outcome of a submit or delete: success closes the form,
// a failure keeps it open with the cause shown.
func (f *Form) Resolve(err error) {
	if err == nil {
		f.Close()
		return
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		f.err = ve.Message
		return
	}
	f.err = "Couldn't save: " + err.Error()
}

func (f *Form) focusField(i int) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	i = (i + len(f.inputs)) % len(f.inputs)
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.focus = i
	return f.inputs[i].Focus()
}

// Update moves focus and feeds keys to the focused input.
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, f.keys.Next):
			return f.focusField(f.focus + 1)
		case key.Matches(km, f.keys.Prev):
			return f.focusField(f.focus - 1)
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *Form) View(width int) string {
	t := ui.Current()
	title := "Add " + f.kind.Noun()
	if f.state.mode == modeEdit {
		title = "Edit " + f.kind.Noun()
	}

	lines := []string{t.Title.Render(title), ""}
	if f.confirm && f.showDelete {
		lines = append(lines, t.Error.Render("Delete this "+f.kind.Noun()+"? ctrl+d deletes, esc keeps it."), "")
	}
	for i, n := range f.names {
		label := fieldLabels[n]
		if i == f.focus {
			label = t.Accent.Render(label)
		}
		lines = append(lines, label, f.inputs[i].View())
	}
	if f.err != "" {
		lines = append(lines, "", t.Error.Render(f.err))
	}
	f.keys.Delete.SetEnabled(f.showDelete)
	lines = append(lines, "", f.help.ShortHelpView(f.keys.ShortHelp()))

	box := lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1)
	if width > 8 {
		box = box.Width(width - 4)
	}
	return box.Render(strings.Join(lines, "\n"))
}
