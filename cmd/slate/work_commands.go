package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slate/internal/work"
)

// workLocator is the shared --sub/--task/--category flag triple that places a
// work inside the project tree.
type workLocator struct {
	sub      string
	task     string
	category string
}

func (l *workLocator) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&l.sub, "sub", "", "Subproject path")
	cmd.PersistentFlags().StringVar(&l.task, "task", "", "Task name")
	cmd.PersistentFlags().StringVar(&l.category, "category", "", "Category name")
}

// resolve loads the task manifest and returns the category database
// directory the works live in, plus the task identity.
func (l *workLocator) resolve(ctx *commandContext, cmdCtx context.Context) (relDir, taskID, taskName string, err error) {
	tasks, _, err := ctx.taskManager(cmdCtx)
	if err != nil {
		return "", "", "", err
	}
	t, err := tasks.Load(l.sub, l.task)
	if err != nil {
		return "", "", "", err
	}
	if !t.HasCategory(l.category) {
		return "", "", "", fmt.Errorf("task %s has no category %s", t.Name, l.category)
	}
	return t.CategoryPath(l.category), t.ID, t.Name, nil
}

func (l *workLocator) load(ctx *commandContext, cmdCtx context.Context, name string) (*work.Manager, *work.Work, error) {
	relDir, _, _, err := l.resolve(ctx, cmdCtx)
	if err != nil {
		return nil, nil, err
	}
	works, _, err := ctx.workManager(cmdCtx)
	if err != nil {
		return nil, nil, err
	}
	w, err := works.Load(relDir, name)
	if err != nil {
		return nil, nil, err
	}
	return works, w, nil
}

func newWorkCommand(ctx *commandContext) *cobra.Command {
	locator := &workLocator{}
	workCmd := &cobra.Command{
		Use:   "work",
		Short: "Manage works and versions",
	}
	locator.register(workCmd)

	workCmd.AddCommand(newWorkListCommand(ctx, locator))
	workCmd.AddCommand(newWorkCreateCommand(ctx, locator))
	workCmd.AddCommand(newWorkVersionCommand(ctx, locator))
	workCmd.AddCommand(newWorkVersionsCommand(ctx, locator))
	workCmd.AddCommand(newWorkStateCommand(ctx, locator, "omit", "Hide a work from default listings"))
	workCmd.AddCommand(newWorkStateCommand(ctx, locator, "revive", "Restore an omitted work"))
	workCmd.AddCommand(newWorkVersionEditCommand(ctx, locator, "delete-version", "Soft-delete a version (owner or admin)"))
	workCmd.AddCommand(newWorkVersionEditCommand(ctx, locator, "resurrect", "Restore a soft-deleted version"))
	workCmd.AddCommand(newWorkSyncCommand(ctx, locator))
	workCmd.AddCommand(newWorkDestroyCommand(ctx, locator))
	return workCmd
}

func newWorkListCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List works in a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			relDir, _, _, err := locator.resolve(ctx, cmd.Context())
			if err != nil {
				return err
			}
			works, _, err := ctx.workManager(cmd.Context())
			if err != nil {
				return err
			}
			found, err := works.Scan(relDir)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(found))
			for _, w := range found {
				rows = append(rows, []string{
					w.Name, w.State,
					strconv.Itoa(len(w.LiveVersions())),
					fmt.Sprintf("v%03d", w.LastVersion()),
					w.Creator,
				})
			}
			printRows(cmd.OutOrStdout(), []string{"Name", "State", "Versions", "Last", "Creator"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft})
			return nil
		},
	}
}

func newWorkCreateCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	var scene, format, notes string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a work and save its first version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			relDir, taskID, taskName, err := locator.resolve(ctx, cmd.Context())
			if err != nil {
				return err
			}
			works, _, err := ctx.workManager(cmd.Context())
			if err != nil {
				return err
			}
			if scene != "" {
				if err := ctx.adapter.Open(scene); err != nil {
					return err
				}
			}
			w, st := works.Create(args[0], relDir, taskID, taskName, locator.category)
			if err := run(st); err != nil {
				return err
			}
			v, st := works.NewVersion(w, format, notes)
			if err := run(st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created work %s at v%03d (%s)\n", w.Name, v.Number, works.SceneFilePath(w, v))
			return nil
		},
	}
	cmd.Flags().StringVar(&scene, "scene", "", "Scene file to save as the first version")
	cmd.Flags().StringVar(&format, "format", ".ma", "Scene file format")
	cmd.Flags().StringVar(&notes, "notes", "", "Version notes")
	return cmd
}

func newWorkVersionCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	var scene, format, notes string

	cmd := &cobra.Command{
		Use:   "version <name>",
		Short: "Save a new version of a work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			works, w, err := locator.load(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if scene != "" {
				if err := ctx.adapter.Open(scene); err != nil {
					return err
				}
			}
			v, st := works.NewVersion(w, format, notes)
			if err := run(st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s v%03d (%s)\n", w.Name, v.Number, works.SceneFilePath(w, v))
			return nil
		},
	}
	cmd.Flags().StringVar(&scene, "scene", "", "Scene file to version up from")
	cmd.Flags().StringVar(&format, "format", ".ma", "Scene file format")
	cmd.Flags().StringVar(&notes, "notes", "", "Version notes")
	return cmd
}

func newWorkVersionsCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "versions <name>",
		Short: "List the versions of a work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, w, err := locator.load(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(w.Versions))
			for _, v := range w.Versions {
				if v.Deleted && !all {
					continue
				}
				state := ""
				if v.Deleted {
					state = "deleted"
				} else if v.Localized {
					state = "localized"
				}
				rows = append(rows, []string{
					fmt.Sprintf("v%03d", v.Number), v.User, v.Workstation, state, v.Notes,
				})
			}
			printRows(cmd.OutOrStdout(), []string{"Version", "User", "Workstation", "State", "Notes"}, rows, nil)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include soft-deleted versions")
	return cmd
}

func newWorkStateCommand(ctx *commandContext, locator *workLocator, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			works, w, err := locator.load(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if use == "omit" {
				return run(works.Omit(w))
			}
			return run(works.Revive(w))
		},
	}
}

func newWorkVersionEditCommand(ctx *commandContext, locator *workLocator, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name> <version>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			works, w, err := locator.load(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version number %q", args[1])
			}
			if use == "delete-version" {
				return run(works.DeleteVersion(w, number))
			}
			return run(works.Resurrect(w, number))
		},
	}
}

func newWorkSyncCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <name> <version>",
		Short: "Move a localized version to the shared origin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			works, w, err := locator.load(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version number %q", args[1])
			}
			return run(works.Sync(w, number))
		},
	}
}

func newWorkDestroyCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Move a whole work to purgatory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			works, w, err := locator.load(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !yes {
				fmt.Fprintln(cmd.OutOrStdout(), works.DestroyConfirmation(w))
				fmt.Fprintln(cmd.OutOrStdout(), "Re-run with --yes to confirm.")
				return nil
			}
			return run(works.Destroy(w, true))
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destroy")
	return cmd
}
