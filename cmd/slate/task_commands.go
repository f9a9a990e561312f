package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks under a subproject",
	}
	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskCreateCommand(ctx))
	taskCmd.AddCommand(newTaskEditCommand(ctx))
	taskCmd.AddCommand(newTaskDeleteCommand(ctx))
	taskCmd.AddCommand(newTaskCategoryCommand(ctx))
	return taskCmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <sub-path>",
		Short: "List tasks of a subproject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, _, err := ctx.taskManager(cmd.Context())
			if err != nil {
				return err
			}
			found, err := tasks.Scan(args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(found))
			for _, t := range found {
				rows = append(rows, []string{t.Name, t.Type, strings.Join(t.Categories, ", "), t.Creator})
			}
			printRows(cmd.OutOrStdout(), []string{"Name", "Type", "Categories", "Creator"}, rows, nil)
			return nil
		},
	}
}

func newTaskCreateCommand(ctx *commandContext) *cobra.Command {
	var sub string
	var categories []string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, _, err := ctx.taskManager(cmd.Context())
			if err != nil {
				return err
			}
			created, st := tasks.Create(args[0], sub, categories)
			if err := run(st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s (%s) with categories: %s\n",
				created.Name, created.Type, strings.Join(created.Categories, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "Subproject path the task belongs to")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "Categories (defaults to every category valid for the subproject mode)")
	return cmd
}

func newTaskEditCommand(ctx *commandContext) *cobra.Command {
	var sub, rename, retype string
	var categories []string

	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Rename, retype or recategorize a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, _, err := ctx.taskManager(cmd.Context())
			if err != nil {
				return err
			}
			return run(tasks.Edit(sub, args[0], rename, retype, categories))
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "Subproject path the task belongs to")
	cmd.Flags().StringVar(&rename, "rename", "", "New task name")
	cmd.Flags().StringVar(&retype, "type", "", "New task type")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "Replacement category list")
	return cmd
}

func newTaskDeleteCommand(ctx *commandContext) *cobra.Command {
	var sub string

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a task (non-empty tasks need admin rights)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, _, err := ctx.taskManager(cmd.Context())
			if err != nil {
				return err
			}
			return run(tasks.Delete(sub, args[0]))
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "Subproject path the task belongs to")
	return cmd
}

func newTaskCategoryCommand(ctx *commandContext) *cobra.Command {
	var sub string

	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Manage the categories of a task",
	}
	categoryCmd.PersistentFlags().StringVar(&sub, "sub", "", "Subproject path the task belongs to")

	categoryCmd.AddCommand(&cobra.Command{
		Use:   "add <task> <category>",
		Short: "Add a category to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, _, err := ctx.taskManager(cmd.Context())
			if err != nil {
				return err
			}
			return run(tasks.AddCategory(sub, args[0], args[1]))
		},
	})
	categoryCmd.AddCommand(&cobra.Command{
		Use:   "remove <task> <category>",
		Short: "Remove a category from a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, _, err := ctx.taskManager(cmd.Context())
			if err != nil {
				return err
			}
			return run(tasks.DeleteCategory(sub, args[0], args[1]))
		},
	})
	categoryCmd.AddCommand(&cobra.Command{
		Use:   "order <task> <category>...",
		Short: "Reorder the categories of a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, _, err := ctx.taskManager(cmd.Context())
			if err != nil {
				return err
			}
			return run(tasks.OrderCategories(sub, args[0], args[1:]))
		},
	})
	return categoryCmd
}
