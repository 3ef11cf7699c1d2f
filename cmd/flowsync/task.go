package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Jayphen/flowsync/internal/logging"
	"github.com/Jayphen/flowsync/internal/taskstore"
	"github.com/Jayphen/flowsync/internal/types"
	"github.com/Jayphen/flowsync/internal/ui"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage encrypted tasks",
		Long:  `Create, inspect, update and delete tasks in the current vault.`,
	}

	cmd.AddCommand(
		newTaskAddCmd(),
		newTaskShowCmd(),
		newTaskListCmd(),
		newTaskUpdateCmd(),
		newTaskDeleteCmd(),
		newTaskInsightsCmd(),
	)

	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var (
		id          string
		title       string
		description string
		status      string
		priority    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		Long: `Add a task to the vault.

A random id is assigned unless --id is given. An existing task with the same
id is replaced.`,
		Example: `  flowsync task add --title "Ship v1" --priority high
  flowsync task add --id t1 --title "Buy milk" --description ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := types.ParseStatus(status)
			if err != nil {
				return err
			}
			pr, err := types.ParsePriority(priority)
			if err != nil {
				return err
			}

			if id == "" {
				id = uuid.New().String()
			}
			task := types.Task{
				ID:       id,
				Title:    title,
				Status:   st,
				Priority: pr,
			}
			if cmd.Flags().Changed("description") {
				task.Description = &description
			}

			return withStore("task add", func(s *taskstore.Store) error {
				if err := s.Put(cmd.Context(), task); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", task.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Task id (default: random UUID)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Task title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&status, "status", "s", string(types.StatusTodo), "Status (todo, in_progress, done, blocked)")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(types.PriorityMedium), "Priority (low, medium, high, critical)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore("task show", func(s *taskstore.Store) error {
				task, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					data, err := types.MarshalTask(task)
					if err != nil {
						return err
					}
					return writeIndented(cmd.OutOrStdout(), data)
				}
				ui.RenderTask(cmd.OutOrStdout(), task)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")

	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		asJSON     bool
		statuses   []string
		priorities []string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  `List tasks in the vault, highest priority first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := &taskstore.Filter{}
			for _, v := range statuses {
				st, err := types.ParseStatus(v)
				if err != nil {
					return err
				}
				filter.Status = append(filter.Status, st)
			}
			for _, v := range priorities {
				pr, err := types.ParsePriority(v)
				if err != nil {
					return err
				}
				filter.Priority = append(filter.Priority, pr)
			}

			return withStore("task list", func(s *taskstore.Store) error {
				tasks, err := s.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				ui.SortTasks(tasks)
				if limit > 0 && len(tasks) > limit {
					tasks = tasks[:limit]
				}

				if asJSON {
					if tasks == nil {
						tasks = []types.Task{}
					}
					data, err := types.MarshalTasks(tasks)
					if err != nil {
						return err
					}
					return writeIndented(cmd.OutOrStdout(), data)
				}
				ui.RenderTaskTable(cmd.OutOrStdout(), tasks)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().StringSliceVarP(&priorities, "priority", "p", nil, "Filter by priority (repeatable or comma separated)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of tasks to show")

	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		title            string
		description      string
		status           string
		priority         string
		clearDescription bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Long:  `Change fields of an existing task. Only the flags given are applied; the id never changes.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u taskstore.Update
			flags := cmd.Flags()

			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if clearDescription {
				if u.Description != nil {
					return fmt.Errorf("--description and --clear-description are mutually exclusive")
				}
				u.ClearDescription = true
			}
			if flags.Changed("status") {
				st, err := types.ParseStatus(status)
				if err != nil {
					return err
				}
				u.Status = &st
			}
			if flags.Changed("priority") {
				pr, err := types.ParsePriority(priority)
				if err != nil {
					return err
				}
				u.Priority = &pr
			}

			return withStore("task update", func(s *taskstore.Store) error {
				task, err := s.Update(cmd.Context(), args[0], u)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", task.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().BoolVar(&clearDescription, "clear-description", false, "Remove the description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority")

	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore("task delete", func(s *taskstore.Store) error {
				if err := s.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

func newTaskInsightsCmd() *cobra.Command {
	var (
		complexity float64
		subtasks   []string
		blockers   []string
	)

	cmd := &cobra.Command{
		Use:   "insights <id>",
		Short: "Attach AI insights to a task",
		Long: `Attach analysis produced by an AI assistant to a task, replacing any
previous insights.`,
		Example: `  flowsync task insights t1 --complexity 3.5 --subtask "write tests" --blocker "API access"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			insights := types.AIInsights{
				Complexity:          complexity,
				RecommendedSubtasks: append([]string{}, subtasks...),
				PotentialBlockers:   append([]string{}, blockers...),
			}

			return withStore("task insights", func(s *taskstore.Store) error {
				task, err := s.SetInsights(cmd.Context(), args[0], insights)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated insights for task %s\n", task.ID)
				return nil
			})
		},
	}

	cmd.Flags().Float64VarP(&complexity, "complexity", "c", 0, "Estimated complexity")
	cmd.Flags().StringArrayVar(&subtasks, "subtask", nil, "Recommended subtask (repeatable)")
	cmd.Flags().StringArrayVar(&blockers, "blocker", nil, "Potential blocker (repeatable)")
	_ = cmd.MarkFlagRequired("complexity")

	return cmd
}

// withStore opens the configured store, runs fn, and closes it.
func withStore(command string, fn func(*taskstore.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	log := logging.WithVault(cfg.Vault).WithCommand(command)
	if err := fn(s); err != nil {
		log.WithError(err).Debug("command failed")
		return err
	}
	log.Debug("command completed")
	return nil
}

func writeIndented(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
