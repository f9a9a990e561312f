package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slate/internal/session"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and the active session",
	}
	userCmd.AddCommand(newUserListCommand(ctx))
	userCmd.AddCommand(newUserSetCommand(ctx))
	userCmd.AddCommand(newUserCreateCommand(ctx))
	userCmd.AddCommand(newUserDeleteCommand(ctx))
	userCmd.AddCommand(newUserPasswordCommand(ctx))
	userCmd.AddCommand(newUserLevelCommand(ctx))
	userCmd.AddCommand(newUserLogoutCommand(ctx))
	return userCmd
}

func permissionLabel(level int) string {
	switch level {
	case session.LevelObserver:
		return "observer"
	case session.LevelGeneric:
		return "generic"
	case session.LevelExperienced:
		return "experienced"
	case session.LevelAdmin:
		return "admin"
	default:
		return strconv.Itoa(level)
	}
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users in the commons",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			users, err := ctx.store.Users(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				active := ""
				if u.Name == ctx.users.Name() {
					active = "*"
				}
				rows = append(rows, []string{active, u.Name, u.Initials, permissionLabel(u.PermissionLevel), u.Email})
			}
			printRows(cmd.OutOrStdout(), []string{"", "Name", "Initials", "Level", "Email"}, rows, nil)
			return nil
		},
	}
}

func newUserSetCommand(ctx *commandContext) *cobra.Command {
	var password string
	var save bool

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Switch the active user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			if err := run(ctx.users.Set(args[0], password, save)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active user: %s (authenticated: %s)\n",
				ctx.users.Name(), yesNo(ctx.session.IsAuthenticated()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Authenticate with this password")
	cmd.Flags().BoolVar(&save, "save", false, "Stay logged in across sessions")
	return cmd
}

func newUserCreateCommand(ctx *commandContext) *cobra.Command {
	var initials, password, email, adminPassword string
	var level int

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a user (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			if err := run(ctx.users.CreateUser(args[0], initials, password, level, adminPassword, email)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", args[0], permissionLabel(level))
			return nil
		},
	}
	cmd.Flags().StringVar(&initials, "initials", "", "User initials")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for the new user")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().IntVar(&level, "level", session.LevelGeneric, "Permission level (0-3)")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "Re-authenticate the active admin inline")
	return cmd
}

func newUserDeleteCommand(ctx *commandContext) *cobra.Command {
	var adminPassword string

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a user (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			if err := run(ctx.users.DeleteUser(args[0], adminPassword)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "Re-authenticate the active admin inline")
	return cmd
}

func newUserPasswordCommand(ctx *commandContext) *cobra.Command {
	var oldPassword, newPassword, forUser, adminPassword string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change a password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			if err := run(ctx.users.ChangePassword(oldPassword, newPassword, forUser, adminPassword)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password (own account)")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	cmd.Flags().StringVar(&forUser, "user", "", "Change another user's password (admin only)")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "Re-authenticate the active admin inline")
	return cmd
}

func newUserLevelCommand(ctx *commandContext) *cobra.Command {
	var adminPassword string

	cmd := &cobra.Command{
		Use:   "level <name> <level>",
		Short: "Change a user's permission level (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			level, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid permission level %q", args[1])
			}
			if err := run(ctx.users.ChangePermissionLevel(args[0], level, adminPassword)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], permissionLabel(session.ClampLevel(level)))
			return nil
		},
	}
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "Re-authenticate the active admin inline")
	return cmd
}

func newUserLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureEnv(); err != nil {
				return err
			}
			if err := ctx.users.ClearSavedLogin(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved login cleared.")
			return nil
		},
	}
}
