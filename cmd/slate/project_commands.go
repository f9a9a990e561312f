package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"slate/internal/commons"
	"slate/internal/config"
	"slate/internal/project"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Create and select projects",
	}
	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectUseCommand(ctx))
	projectCmd.AddCommand(newProjectRecentCommand(ctx))
	projectCmd.AddCommand(newProjectBookmarkCommand(ctx))
	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var structureName string

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a project (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if !filepath.IsAbs(path) {
				path = filepath.Join(ctx.config.Paths.ProjectsDir, path)
			}
			defaults, err := ctx.store.MetadataDefaults(cmd.Context())
			if err != nil {
				return err
			}
			var structure *commons.StructureTemplate
			if structureName != "" {
				tpl, err := ctx.store.Structure(cmd.Context(), structureName)
				if err != nil {
					return err
				}
				structure = &tpl
			}
			proj, st := project.Create(ctx.session, path, defaults, structure)
			if err := run(st); err != nil {
				return err
			}
			if err := ctx.users.SetLastProject(proj.AbsolutePath()); err != nil {
				return err
			}
			if err := ctx.users.AddRecentProject(proj.AbsolutePath()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s at %s\n", proj.Name(), proj.AbsolutePath())
			return nil
		},
	}
	cmd.Flags().StringVar(&structureName, "structure", "", "Seed the subproject tree from a named structure template")
	return cmd
}

func newProjectUseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "use <path>",
		Short: "Select the working project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if !filepath.IsAbs(path) {
				path = filepath.Join(ctx.config.Paths.ProjectsDir, path)
			}
			defaults, err := ctx.store.MetadataDefaults(cmd.Context())
			if err != nil {
				return err
			}
			proj, err := project.Open(ctx.session, path, defaults)
			if err != nil {
				return err
			}
			if err := ctx.users.SetLastProject(proj.AbsolutePath()); err != nil {
				return err
			}
			if err := ctx.users.AddRecentProject(proj.AbsolutePath()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Working project: %s\n", proj.AbsolutePath())
			return nil
		},
	}
}

func newProjectRecentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently used projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			last := ctx.users.LastProject()
			for _, path := range ctx.users.RecentProjects() {
				marker := " "
				if path == last {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, path)
			}
			return nil
		},
	}
}

func newProjectBookmarkCommand(ctx *commandContext) *cobra.Command {
	bookmarkCmd := &cobra.Command{
		Use:   "bookmark",
		Short: "Manage project bookmarks",
	}
	bookmarkCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bookmarked projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			for _, path := range ctx.users.Bookmarks() {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	})
	bookmarkCmd.AddCommand(&cobra.Command{
		Use:   "add <path>",
		Short: "Bookmark a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			return run(ctx.users.AddBookmark(strings.TrimSpace(args[0])))
		},
	})
	bookmarkCmd.AddCommand(&cobra.Command{
		Use:   "remove <path>",
		Short: "Remove a project bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			return run(ctx.users.RemoveBookmark(strings.TrimSpace(args[0])))
		},
	})
	return bookmarkCmd
}
