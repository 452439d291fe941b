package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/bootstrap"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage dashboard users",
	Long: `Manage DromeBoard users directly in the database.

Examples:
  dromeboard users list
  dromeboard users create-admin --email=admin@example.com --name=Admin
  dromeboard users reset-password admin@example.com`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  runUsersList,
}

var usersCreateAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator",
	RunE:  runUsersCreateAdmin,
}

var usersResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <user-id-or-email>",
	Short: "Reset a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersResetPassword,
}

var (
	userEmail    string
	userName     string
	userPassword string
)

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateAdminCmd)
	usersCmd.AddCommand(usersResetPasswordCmd)

	usersCreateAdminCmd.Flags().StringVar(&userEmail, "email", "", "admin email (required)")
	usersCreateAdminCmd.Flags().StringVar(&userName, "name", "Administrador", "admin name")
	usersCreateAdminCmd.Flags().StringVar(&userPassword, "password", "", "password (default: auth.default_password)")
	usersCreateAdminCmd.MarkFlagRequired("email")

	usersResetPasswordCmd.Flags().StringVar(&userPassword, "password", "", "new password (default: auth.default_password)")
}

// openApp builds the application without serving, for one-off maintenance.
func openApp() (*bootstrap.App, error) {
	a, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
		LogOutput:  io.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open application: %w", err)
	}
	return a, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	users, err := a.Directory.ListUsers(cmd.Context(), "")
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Create one with: dromeboard users create-admin --email=admin@example.com")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tUNITS\tSTATUS")
	fmt.Fprintln(w, "--\t-----\t----\t-----\t------")
	for _, u := range users {
		status := "active"
		if !u.Active {
			status = "inactive"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.RoleName, strings.Join(u.UnitNames, ", "), status)
	}
	return w.Flush()
}

func runUsersCreateAdmin(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	u, err := a.Directory.CreateUser(cmd.Context(), app.UserInput{
		Name:     userName,
		Email:    userEmail,
		RoleID:   directory.RoleAdminID,
		Password: userPassword,
	}, "")
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Created admin user: %s\n", checkMark, u.Email)
	fmt.Fprintf(out, "   ID: %s\n", u.ID)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "You can now log in at: http://%s/dashboard/login\n", a.Config.Server.Addr())
	return nil
}

func runUsersResetPassword(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	u, err := findUser(cmd.Context(), a.Directory, args[0])
	if err != nil {
		return err
	}
	if err := a.Directory.ResetPassword(cmd.Context(), u.ID, userPassword); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Password reset for: %s\n", checkMark, u.Email)
	return nil
}

// findUser resolves an id, or an email when the identifier contains @.
func findUser(ctx context.Context, dir *app.DirectoryService, identifier string) (directory.User, error) {
	if !strings.Contains(identifier, "@") {
		u, err := dir.GetUser(ctx, identifier)
		if err != nil {
			return directory.User{}, fmt.Errorf("user not found: %s", identifier)
		}
		return u, nil
	}

	users, err := dir.ListUsers(ctx, "")
	if err != nil {
		return directory.User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, identifier) {
			return u, nil
		}
	}
	return directory.User{}, fmt.Errorf("user not found: %s", identifier)
}
