package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slate/internal/publish"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	locator := &workLocator{}
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish works and manage publish lineages",
	}
	locator.register(publishCmd)

	publishCmd.AddCommand(newPublishRunCommand(ctx))
	publishCmd.AddCommand(newPublishListCommand(ctx, locator))
	publishCmd.AddCommand(newPublishPromoteCommand(ctx, locator))
	publishCmd.AddCommand(newPublishLineageEditCommand(ctx, locator, "delete", "Soft-delete a publish version (admin only)"))
	publishCmd.AddCommand(newPublishLineageEditCommand(ctx, locator, "resurrect", "Restore a soft-deleted publish version (admin only)"))
	publishCmd.AddCommand(newPublishDiscardCommand(ctx, locator))
	return publishCmd
}

// pluginDir is where studios drop descriptor files that remap validators and
// extractors; it lives next to the shared commons database.
func (c *commandContext) pluginDir() string {
	return filepath.Join(c.config.Paths.CommonsDir, "plugins")
}

func newPublishRunCommand(ctx *commandContext) *cobra.Command {
	var notes string
	var ignore []string
	var fix bool

	cmd := &cobra.Command{
		Use:   "run <scene>",
		Short: "Run the full publish pipeline on a scene file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			works, proj, err := ctx.workManager(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctx.adapter.Open(args[0]); err != nil {
				return err
			}
			registry := publish.Builtin()
			if loaded, err := publish.LoadDir(registry, ctx.pluginDir()); err != nil {
				return err
			} else if loaded > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d plugin descriptors\n", loaded)
			}

			out := cmd.OutOrStdout()
			p := publish.New(proj, works, ctx.store, registry)
			name, st := p.Resolve(cmd.Context())
			if err := run(st); err != nil {
				return err
			}
			fmt.Fprintf(out, "Resolved %s (work %s v%03d)\n", name, p.Work().Name, p.WorkVersion())

			for _, warning := range p.Preflight() {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}

			if err := run(p.Validate()); err != nil {
				return err
			}
			for _, v := range p.Validators() {
				if v.State() != publish.ValidationFailed {
					continue
				}
				if fix && v.Autofixable() {
					if err := v.Fix(ctx.adapter); err != nil {
						return fmt.Errorf("fix %s: %w", v.NiceName(), err)
					}
					v.Validate(ctx.adapter)
					if v.State() == publish.ValidationPassed {
						fmt.Fprintf(out, "Fixed %s\n", v.NiceName())
						continue
					}
				}
				if contains(ignore, v.Name()) {
					if err := v.Ignore(); err != nil {
						return err
					}
					fmt.Fprintf(out, "Ignored %s: %s\n", v.NiceName(), v.FailMessage())
				}
			}

			if err := run(p.Reserve(cmd.Context())); err != nil {
				return err
			}
			if st := p.Extract(); !st.OK() {
				fmt.Fprintf(out, "Extraction aborted; partial elements are kept. Run `slate publish discard` to remove slot v%03d.\n",
					p.Reserved().Number)
				return run(st)
			}
			pv, st := p.Publish(notes)
			if err := run(st); err != nil {
				return err
			}
			fmt.Fprintf(out, "Published %s v%03d with %d element(s)\n", pv.Name, pv.Number, len(pv.Elements))
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Publish notes")
	cmd.Flags().StringArrayVar(&ignore, "ignore", nil, "Force-skip a failed ignorable validator by name")
	cmd.Flags().BoolVar(&fix, "fix", false, "Attempt autofix on failed validators and re-validate")
	return cmd
}

func contains(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}

func newPublishListCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list <work>",
		Short: "List the publish lineage of a work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			works, w, err := locator.load(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			lineage, err := works.Publishes(w)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(lineage))
			for _, pv := range lineage {
				if pv.Deleted && !all {
					continue
				}
				marker := ""
				if pv.Promoted {
					marker = "promoted"
				}
				if pv.Deleted {
					marker = "deleted"
				}
				elements := make([]string, 0, len(pv.Elements))
				for name := range pv.Elements {
					elements = append(elements, name)
				}
				rows = append(rows, []string{
					fmt.Sprintf("v%03d", pv.Number), pv.State, marker,
					pv.Creator, strings.Join(elements, ", "), pv.Notes,
				})
			}
			printRows(cmd.OutOrStdout(), []string{"Version", "State", "", "Creator", "Elements", "Notes"}, rows, nil)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include soft-deleted publish versions")
	return cmd
}

func newPublishPromoteCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <work> <version>",
		Short: "Promote one publish version of a lineage",
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
			return run(works.Promote(w, number))
		},
	}
}

func newPublishLineageEditCommand(ctx *commandContext, locator *workLocator, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <work> <version>",
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
			if use == "delete" {
				return run(works.DeletePublishVersion(w, number))
			}
			return run(works.ResurrectPublishVersion(w, number))
		},
	}
}

func newPublishDiscardCommand(ctx *commandContext, locator *workLocator) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <work> <version>",
		Short: "Remove a pending publish slot and its partial elements",
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
			return works.DiscardPending(w, number)
		},
	}
}
