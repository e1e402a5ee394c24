package cli

import (
	"fmt"
	"strings"

	"github.com/idilsaglam/dayplan/internal/model"
	"github.com/idilsaglam/dayplan/internal/planner"
	"github.com/idilsaglam/dayplan/internal/ui"
)

func renderSnapshot(snap planner.Snapshot) string {
	t := ui.Current()
	title := "Targets"
	if snap.Kind == model.KindAppointment {
		title = "Schedule"
	}
	lines := []string{t.Title.Render(title) + "  " + t.Muted.Render(snap.Day)}

	if snap.Kind.Toggleable() && len(snap.Entries) > 0 {
		done := 0
		for _, e := range snap.Entries {
			if e.Completed {
				done++
			}
		}
		lines = append(lines, ui.ProgressBar(done, len(snap.Entries), 20))
	}

	switch {
	case snap.Failed():
		lines = append(lines, t.Muted.Render("couldn't load: "+snap.Err.Error()))
	case len(snap.Entries) == 0:
		lines = append(lines, t.Muted.Render("no entries"))
	}
	for _, e := range snap.Entries {
		lines = append(lines, renderLine(e))
	}
	return ui.Panel(lines)
}

func renderLine(e model.Entry) string {
	t := ui.Current()
	id := t.Muted.Render(fmt.Sprintf("#%-3d", e.ID))
	if e.Kind == model.KindAppointment {
		span := model.NormalizeClock(e.TimeFrom) + "–" + model.NormalizeClock(e.TimeUntil)
		return strings.Join([]string{id, t.Accent.Render(t.SymClock + " " + span), e.Title}, " ")
	}
	if e.Completed {
		return strings.Join([]string{id, t.Success.Render(t.BoxChecked), t.Done.Render(e.Title)}, " ")
	}
	return strings.Join([]string{id, t.Pending.Render(t.BoxUnchecked), e.Title}, " ")
}
