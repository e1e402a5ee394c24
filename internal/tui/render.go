package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/dayplan/internal/model"
	"github.com/idilsaglam/dayplan/internal/ui"
)

// entryItem adapts model.Entry to bubbles/list.Item.
type entryItem struct {
	entry model.Entry
}

func (i entryItem) FilterValue() string { return i.entry.Title }

// Attrs is what the edit form is populated from.
func (i entryItem) Attrs() model.Fields { return i.entry.Attrs() }

// Render clears the container and rebuilds it from entries in ascending order.
// An empty slice leaves an empty list, no placeholder row.
func Render(container *list.Model, entries []model.Entry) tea.Cmd {
	sorted := append([]model.Entry(nil), entries...)
	model.SortByOrder(sorted)

	items := make([]list.Item, 0, len(sorted))
	for _, e := range sorted {
		items = append(items, entryItem{entry: e})
	}
	return container.SetItems(items)
}

// selectedEntry is the entry under the cursor, if any.
func selectedEntry(l list.Model) (model.Entry, bool) {
	it, ok := l.SelectedItem().(entryItem)
	if !ok {
		return model.Entry{}, false
	}
	return it.entry, true
}

// Custom delegate to control how items render (single line)
type entryDelegate struct{}

func (d entryDelegate) Height() int                               { return 1 }
func (d entryDelegate) Spacing() int                              { return 0 }
func (d entryDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d entryDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(entryItem)
	if !ok {
		return
	}
	fmt.Fprintln(w, renderRow(it.entry, index == m.Index()))
}

func renderRow(e model.Entry, selected bool) string {
	t := ui.Current()
	var line string
	switch e.Kind {
	case model.KindAppointment:
		span := fmt.Sprintf("%s–%s", model.NormalizeClock(e.TimeFrom), model.NormalizeClock(e.TimeUntil))
		line = fmt.Sprintf("%s %s %s", t.Accent.Render(t.SymClock), t.Muted.Render(span), e.Title)
	default:
		box, text := t.Muted.Render(t.BoxUnchecked), e.Title
		if e.Completed {
			box, text = t.Success.Render(t.BoxChecked), t.Done.Render(e.Title)
		}
		line = fmt.Sprintf("%s %s", box, text)
	}
	prefix := "  "
	if selected {
		prefix = t.Selected.Render("> ")
	}
	return prefix + strings.TrimRight(line, " ")
}
