package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/model"
	"github.com/pathakanu/noteminder/internal/reminder"
	"github.com/spf13/cobra"
)

// reminderLayouts are accepted by --at in addition to RFC 3339.
var reminderLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04"}

type noteFlags struct {
	content       string
	at            string
	in            time.Duration
	clearReminder bool
	recurring     bool
	every         int
	unit          string
	effect        string
}

var (
	listJSON  bool
	addFlags  noteFlags
	editFlags noteFlags
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage your notes",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			list, err := a.notes.List(ctx)
			if err != nil {
				return err
			}
			if listJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			return printNotes(cmd.OutOrStdout(), list, time.Now(), a.cfg.LocalTimezone)
		})
	},
}

var notesAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Create a note, optionally with a reminder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			form, err := addFlags.form(strings.Join(args, " "), time.Now(), a.cfg.LocalTimezone)
			if err != nil {
				return err
			}
			note, err := a.notes.Create(ctx, form.Fields())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", note.ID)
			return nil
		})
	},
}

var notesEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a note; unspecified fields are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			patch, err := editFlags.patch(cmd, time.Now(), a.cfg.LocalTimezone)
			if err != nil {
				return err
			}
			note, err := a.notes.Update(ctx, args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", note.ID)
			return nil
		})
	},
}

var notesRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a note",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.notes.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesListCmd, notesAddCmd, notesEditCmd, notesRmCmd)

	notesListCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")

	addFlags.register(notesAddCmd, false)
	editFlags.register(notesEditCmd, true)
}

func (f *noteFlags) register(cmd *cobra.Command, edit bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.at, "at", "", `Reminder time, RFC 3339 or "2006-01-02 15:04" in the local time zone`)
	fs.DurationVar(&f.in, "in", 0, "Reminder time relative to now, e.g. 2h30m")
	fs.BoolVar(&f.recurring, "recurring", false, "Mark the reminder as recurring")
	fs.IntVar(&f.every, "every", 1, "Recurrence interval")
	fs.StringVar(&f.unit, "unit", string(model.UnitHours), "Recurrence unit: minutes, hours or days")
	fs.StringVar(&f.effect, "effect", string(model.DefaultEffect), "Visual effect: shake, blink, bounce or pulse")
	cmd.MarkFlagsMutuallyExclusive("at", "in")
	if edit {
		fs.StringVar(&f.content, "content", "", "New content")
		fs.BoolVar(&f.clearReminder, "clear-reminder", false, "Remove the reminder")
		cmd.MarkFlagsMutuallyExclusive("at", "clear-reminder")
		cmd.MarkFlagsMutuallyExclusive("in", "clear-reminder")
	}
}

// form fills a new-note form the way the dashboard form would.
func (f *noteFlags) form(content string, now time.Time, loc *time.Location) (model.NoteForm, error) {
	form := model.NewNoteForm()
	form.Content = content
	at, err := parseReminder(f.at, f.in, now, loc)
	if err != nil {
		return form, err
	}
	form.ReminderTime = at
	form.IsRecurring = f.recurring
	form.RecurringInterval = f.every
	form.RecurringUnit = model.RecurringUnit(f.unit)
	form.VisualEffect = model.VisualEffect(f.effect)
	return form, nil
}

// patch builds an update from the flags that were set on cmd.
func (f *noteFlags) patch(cmd *cobra.Command, now time.Time, loc *time.Location) (model.Patch, error) {
	changed := cmd.Flags().Changed
	var p model.Patch

	if changed("content") {
		p.Content = model.Set(f.content)
	}
	switch {
	case f.clearReminder:
		p.ReminderTime = model.Clear[time.Time]()
		p.VisualEffect = model.Clear[model.VisualEffect]()
		p.IsRecurring = model.Set(false)
		p.RecurringInterval = model.Clear[int]()
		p.RecurringUnit = model.Clear[model.RecurringUnit]()
	case changed("at") || changed("in"):
		at, err := parseReminder(f.at, f.in, now, loc)
		if err != nil {
			return p, err
		}
		p.ReminderTime = model.Set(*at)
	}
	if changed("effect") && !f.clearReminder {
		p.VisualEffect = model.Set(model.VisualEffect(f.effect))
	}
	if !f.clearReminder {
		switch {
		case changed("recurring") && f.recurring:
			p.IsRecurring = model.Set(true)
			p.RecurringInterval = model.Set(f.every)
			p.RecurringUnit = model.Set(model.RecurringUnit(f.unit))
		case changed("recurring"):
			p.IsRecurring = model.Set(false)
			p.RecurringInterval = model.Clear[int]()
			p.RecurringUnit = model.Clear[model.RecurringUnit]()
		default:
			if changed("every") {
				p.RecurringInterval = model.Set(f.every)
			}
			if changed("unit") {
				p.RecurringUnit = model.Set(model.RecurringUnit(f.unit))
			}
		}
	}
	if p.Empty() {
		return p, errs.Validation("update", "no fields to change")
	}
	return p, nil
}

// parseReminder resolves --at or --in. It returns nil when neither is set.
func parseReminder(at string, in time.Duration, now time.Time, loc *time.Location) (*time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if in != 0 {
		t := now.Add(in)
		return &t, nil
	}
	at = strings.TrimSpace(at)
	if at == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, at); err == nil {
		return &t, nil
	}
	for _, layout := range reminderLayouts {
		if t, err := time.ParseInLocation(layout, at, loc); err == nil {
			return &t, nil
		}
	}
	return nil, errs.Validation("reminder_time", fmt.Sprintf("cannot parse %q", at))
}

func printNotes(w io.Writer, list []model.Note, now time.Time, loc *time.Location) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No notes yet. Create one with: noteminder notes add <content>")
		return err
	}
	if loc == nil {
		loc = time.Local
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREMINDER\tSTATUS\tCONTENT")
	for _, n := range list {
		st, _ := reminder.NewEvaluator(n).Check(now)
		when, status := "-", "-"
		if n.ReminderTime != nil {
			when = n.ReminderTime.In(loc).Format("2006-01-02 15:04")
			status = st.Label
			if n.IsRecurring && n.RecurringInterval != nil && n.RecurringUnit != nil {
				status += fmt.Sprintf(" (every %d %s)", *n.RecurringInterval, *n.RecurringUnit)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, when, status, firstLine(n.Content))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
