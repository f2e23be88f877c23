package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/adanyl0v/taskdock/internal/models"
)

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks you created or are assigned to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := rootOpts.client(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			err = client.Refresh(ctx)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Tasks(client.Tasks())
		},
	}
}

type taskFlags struct {
	title       string
	description string
	priority    string
	status      string
	dueDate     string
	assignee    string
}

func (f *taskFlags) register(flags *pflag.FlagSet, withDefaults bool) {
	priority, status := "", ""
	if withDefaults {
		priority = string(models.PriorityMedium)
		status = string(models.StatusPending)
	}
	flags.StringVarP(&f.title, "title", "t", "", "task title")
	flags.StringVarP(&f.description, "description", "d", "", "task description")
	flags.StringVarP(&f.priority, "priority", "p", priority, "LOW, MEDIUM, HIGH or URGENT")
	flags.StringVar(&f.status, "status", status, "PENDING, IN_PROGRESS or COMPLETED")
	flags.StringVar(&f.dueDate, "due", "", "due date (YYYY-MM-DD); empty clears it on update")
	flags.StringVarP(&f.assignee, "assignee", "a", "", "assignee user id; empty clears it on update")
}

func (f *taskFlags) input() models.TaskInput {
	input := models.TaskInput{
		Title:    f.title,
		Priority: normalizeEnum(f.priority),
		Status:   normalizeEnum(f.status),
	}
	if f.description != "" {
		input.Description = &f.description
	}
	if f.dueDate != "" {
		input.DueDate = &f.dueDate
	}
	if f.assignee != "" {
		input.AssignedToID = &f.assignee
	}
	return input
}

// patch includes only the flags given on the command line.
func (f *taskFlags) patch(flags *pflag.FlagSet) models.TaskPatch {
	var p models.TaskPatch
	if flags.Changed("title") {
		p.Title = models.Some(f.title)
	}
	if flags.Changed("description") {
		p.Description = models.Some(f.description)
	}
	if flags.Changed("priority") {
		p.Priority = models.Some(normalizeEnum(f.priority))
	}
	if flags.Changed("status") {
		p.Status = models.Some(normalizeEnum(f.status))
	}
	if flags.Changed("due") {
		p.DueDate = models.Some(nullable(f.dueDate))
	}
	if flags.Changed("assignee") {
		p.AssignedToID = models.Some(nullable(f.assignee))
	}
	return p
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// normalizeEnum lets users type "in progress" for IN_PROGRESS.
func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &taskFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := rootOpts.client(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			task, err := client.CreateTask(ctx, flags.input())
			client.Wait()
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Task(task)
		},
	}
	flags.register(cmd.Flags(), true)
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &taskFlags{}

	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change fields of a task",
		Long: `Change fields of a task. Only the flags you pass are sent.

Assignees may change priority and status only; other fields they send are
ignored by the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := rootOpts.client(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			task, err := client.UpdateTask(ctx, args[0], flags.patch(cmd.Flags()))
			client.Wait()
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Task(task)
		},
	}
	flags.register(cmd.Flags(), false)

	return cmd
}

func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task you created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := rootOpts.client(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			err = client.DeleteTask(ctx, args[0])
			client.Wait()
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Message("deleted %s", args[0])
		},
	}
}
