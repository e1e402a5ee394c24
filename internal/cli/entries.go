package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/dayplan/internal/model"
	"github.com/idilsaglam/dayplan/internal/planner"
	"github.com/idilsaglam/dayplan/internal/ui"
)

// entryOptions are the per-field flags of add and edit.
type entryOptions struct {
	Title string
	Order int
	From  string
	Until string
}

func addEntryFlags(cmd *cobra.Command, kind model.Kind, o *entryOptions, withTitle bool) {
	if withTitle {
		cmd.Flags().StringVar(&o.Title, "title", "", "New title.")
	}
	switch kind {
	case model.KindTarget:
		cmd.Flags().IntVar(&o.Order, "order", 0, "Position in the day's list, lowest first.")
	case model.KindAppointment:
		cmd.Flags().StringVar(&o.From, "from", "", "Start time, HH:00.")
		cmd.Flags().StringVar(&o.Until, "until", "", "End time, HH:00.")
	}
}

// addList is the top-level "ls": both kinds, fetched at once.
func addList(topLevel *cobra.Command, a *App) {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Show the day's targets and appointments.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps := make([]planner.Snapshot, len(model.Kinds))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, kind := range model.Kinds {
				s, err := a.synchronizer(kind)
				if err != nil {
					return err
				}
				i := i
				g.Go(func() error {
					snaps[i] = s.List(ctx)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			var failed []string
			for _, snap := range snaps {
				fmt.Fprintln(cmd.OutOrStdout(), renderSnapshot(snap))
				if snap.Failed() {
					failed = append(failed, snap.Kind.Noun()+"s")
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("couldn't load %s", strings.Join(failed, " and "))
			}
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func addEntries(topLevel *cobra.Command, a *App, kind model.Kind, use string, aliases ...string) {
	cmd := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   fmt.Sprintf("Manage the day's %ss.", kind.Noun()),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: fmt.Sprintf("List the day's %ss.", kind.Noun()),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.synchronizer(kind)
			if err != nil {
				return err
			}
			snap := s.List(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), renderSnapshot(snap))
			return snap.Err
		},
	})

	addOpts := &entryOptions{}
	add := &cobra.Command{
		Use:   "add <title...>",
		Short: fmt.Sprintf("Add a %s.", kind.Noun()),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.synchronizer(kind)
			if err != nil {
				return err
			}
			fields := a.fields(model.Fields{model.FieldTitle: strings.Join(args, " ")})
			if kind == model.KindTarget {
				fields[model.FieldOrder] = strconv.Itoa(addOpts.Order)
			} else {
				fields[model.FieldTimeFrom] = addOpts.From
				fields[model.FieldTimeUntil] = addOpts.Until
			}
			if err := model.Validate(kind, fields); err != nil {
				return err
			}
			res, err := s.Create(cmd.Context(), fields)
			return a.report(cmd, kind, res, err)
		},
	}
	addEntryFlags(add, kind, addOpts, false)
	cmd.AddCommand(add)

	editOpts := &entryOptions{}
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: fmt.Sprintf("Change a %s; unset flags keep their value.", kind.Noun()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, e, err := a.lookup(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}
			fields := a.fields(e.Attrs())
			flags := cmd.Flags()
			if flags.Changed("title") {
				fields[model.FieldTitle] = editOpts.Title
			}
			if flags.Changed("order") {
				fields[model.FieldOrder] = strconv.Itoa(editOpts.Order)
			}
			if flags.Changed("from") {
				fields[model.FieldTimeFrom] = editOpts.From
			}
			if flags.Changed("until") {
				fields[model.FieldTimeUntil] = editOpts.Until
			}
			if err := model.Validate(kind, fields); err != nil {
				return err
			}
			res, err := s.Update(cmd.Context(), e.ID, fields)
			return a.report(cmd, kind, res, err)
		},
	}
	addEntryFlags(edit, kind, editOpts, true)
	cmd.AddCommand(edit)

	if kind.Toggleable() {
		cmd.AddCommand(&cobra.Command{
			Use:   "done <id>",
			Short: "Toggle a target between done and pending.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, e, err := a.lookup(cmd.Context(), kind, args[0])
				if err != nil {
					return err
				}
				res, err := s.ToggleCompleted(cmd.Context(), e, a.CSRF)
				return a.report(cmd, kind, res, err)
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Delete a %s.", kind.Noun()),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, e, err := a.lookup(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}
			res, err := s.Remove(cmd.Context(), e.ID, a.CSRF)
			return a.report(cmd, kind, res, err)
		},
	})

	topLevel.AddCommand(cmd)
}

// fields adds the hidden user and csrf values a submitted form carries.
func (a *App) fields(f model.Fields) model.Fields {
	out := f.Clone()
	if a.User != "" {
		out[model.FieldUser] = a.User
	}
	if a.CSRF != "" {
		out[model.FieldCSRF] = a.CSRF
	}
	return out
}

// lookup resolves an id argument against the day as the backend has it now.
func (a *App) lookup(ctx context.Context, kind model.Kind, arg string) (*planner.Synchronizer, model.Entry, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return nil, model.Entry{}, fmt.Errorf("not an id: %s", arg)
	}
	s, err := a.synchronizer(kind)
	if err != nil {
		return nil, model.Entry{}, err
	}
	snap := s.List(ctx)
	if snap.Failed() {
		return nil, model.Entry{}, fmt.Errorf("list %ss: %w", kind.Noun(), snap.Err)
	}
	e, ok := model.Find(snap.Entries, id)
	if !ok {
		return nil, model.Entry{}, fmt.Errorf("no %s with id %d on %s", kind.Noun(), id, snap.Day)
	}
	return s, e, nil
}

// report prints the saved notice and the refreshed day.
func (a *App) report(cmd *cobra.Command, kind model.Kind, res planner.Result, err error) error {
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ui.OK(out, kind.Label()+" saved.")
	fmt.Fprintln(out, renderSnapshot(res.Snapshot))
	return nil
}
