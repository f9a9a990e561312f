package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slate/internal/project"
)

func newSubCommand(ctx *commandContext) *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "sub",
		Short: "Manage the subproject tree",
	}
	subCmd.AddCommand(newSubListCommand(ctx))
	subCmd.AddCommand(newSubCreateCommand(ctx))
	subCmd.AddCommand(newSubEditCommand(ctx))
	subCmd.AddCommand(newSubDeleteCommand(ctx))
	return subCmd
}

// parseMetadataValues turns repeated key=value flags into typed values.
// Numbers become float64 so they compare cleanly with schema defaults.
func parseMetadataValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("metadata must be key=value, got %q", pair)
		}
		if number, err := strconv.ParseFloat(raw, 64); err == nil {
			values[key] = number
			continue
		}
		if flag, err := strconv.ParseBool(raw); err == nil {
			values[key] = flag
			continue
		}
		values[key] = raw
	}
	return values, nil
}

func newSubListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [wildcard]",
		Short: "List subprojects",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := ctx.openProject(cmd.Context())
			if err != nil {
				return err
			}
			var subs []*project.Subproject
			if len(args) == 1 {
				subs = proj.FindSubsByWildcard(args[0])
			} else {
				subs = collectSubs(proj, proj.Root())
			}
			rows := make([][]string, 0, len(subs))
			for _, sub := range subs {
				if sub.Path == "" {
					continue
				}
				mode := proj.EffectiveMode(sub)
				if mode == "" {
					mode = "global"
				}
				fps := fmt.Sprintf("%v", proj.EffectiveMetadata(sub, "fps"))
				rows = append(rows, []string{sub.Path, mode, fps})
			}
			printRows(cmd.OutOrStdout(), []string{"Path", "Mode", "FPS"}, rows, nil)
			return nil
		},
	}
}

func collectSubs(proj *project.Project, root *project.Subproject) []*project.Subproject {
	out := []*project.Subproject{root}
	children := proj.Subprojects(root)
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	for _, child := range children {
		out = append(out, collectSubs(proj, child)...)
	}
	return out
}

func newSubCreateCommand(ctx *commandContext) *cobra.Command {
	var parent string
	var metadata []string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a subproject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := ctx.openProject(cmd.Context())
			if err != nil {
				return err
			}
			overrides, err := parseMetadataValues(metadata)
			if err != nil {
				return err
			}
			sub, st := proj.CreateSubProject(args[0], parent, overrides)
			if err := run(st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created subproject %s\n", sub.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent subproject path (empty for the project root)")
	cmd.Flags().StringArrayVarP(&metadata, "meta", "m", nil, "Override metadata, e.g. -m fps=25 -m mode=asset")
	return cmd
}

func newSubEditCommand(ctx *commandContext) *cobra.Command {
	var rename string
	var metadata []string
	var clearOverrides []string

	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Rename a subproject or adjust its metadata overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := ctx.openProject(cmd.Context())
			if err != nil {
				return err
			}
			setValues, err := parseMetadataValues(metadata)
			if err != nil {
				return err
			}
			var overridden map[string]bool
			if len(clearOverrides) > 0 {
				overridden = make(map[string]bool, len(clearOverrides))
				for _, key := range clearOverrides {
					overridden[key] = false
				}
			}
			return run(proj.EditSubProject(args[0], rename, setValues, overridden))
		},
	}
	cmd.Flags().StringVar(&rename, "rename", "", "New name for the subproject")
	cmd.Flags().StringArrayVarP(&metadata, "meta", "m", nil, "Set metadata overrides, e.g. -m fps=25")
	cmd.Flags().StringArrayVar(&clearOverrides, "clear", nil, "Disable an override so the value inherits again")
	return cmd
}

func newSubDeleteCommand(ctx *commandContext) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete a subproject (non-empty trees need --cascade and admin rights)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := ctx.openProject(cmd.Context())
			if err != nil {
				return err
			}
			return run(proj.DeleteSubProject(args[0], cascade))
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Confirm deleting the subproject together with everything below it")
	return cmd
}
