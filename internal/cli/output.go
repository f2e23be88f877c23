package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/adanyl0v/taskdock/internal/models"
)

type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) Tasks(tasks []models.Task) error {
	if f.Format == "json" {
		return f.JSON(tasks)
	}
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(f.Writer, "no tasks")
		return err
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRIORITY\tSTATUS\tDUE\tCREATOR\tASSIGNEE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Title,
			t.Priority,
			t.Status,
			dueString(t),
			creatorName(t),
			assigneeName(t),
		)
	}
	return tw.Flush()
}

func (f *OutputFormatter) Task(task *models.Task) error {
	if f.Format == "json" {
		return f.JSON(task)
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", task.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", task.Description)
	}
	fmt.Fprintf(tw, "Priority:\t%s\n", task.Priority)
	fmt.Fprintf(tw, "Status:\t%s\n", task.Status)
	fmt.Fprintf(tw, "Due:\t%s\n", dueString(*task))
	fmt.Fprintf(tw, "Creator:\t%s\n", creatorName(*task))
	fmt.Fprintf(tw, "Assignee:\t%s\n", assigneeName(*task))
	return tw.Flush()
}

// Event prints one line per inbound event.
func (f *OutputFormatter) Event(evt models.TaskEvent) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(evt)
	}
	_, err := fmt.Fprintf(f.Writer, "%-14s %s %q [%s/%s]\n",
		evt.Type,
		evt.Task.ID,
		evt.Task.Title,
		evt.Task.Priority,
		evt.Task.Status,
	)
	return err
}

func (f *OutputFormatter) Message(format string, args ...any) error {
	if f.Format == "json" {
		return f.JSON(map[string]string{"message": fmt.Sprintf(format, args...)})
	}
	_, err := fmt.Fprintf(f.Writer, format+"\n", args...)
	return err
}

func dueString(t models.Task) string {
	if t.DueDate == nil {
		return "-"
	}
	return t.DueDate.String()
}

func creatorName(t models.Task) string {
	if t.CreatedBy != nil {
		return t.CreatedBy.Name
	}
	return t.CreatedByID
}

func assigneeName(t models.Task) string {
	if t.AssignedTo != nil {
		return t.AssignedTo.Name
	}
	if t.AssignedToID != nil {
		return *t.AssignedToID
	}
	return "-"
}
