package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"magicpic_admin/internal/adminapi"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringP("email", "e", "", "Admin email")
	loginCmd.Flags().StringP("password", "p", "", "Password (default: $MAGICPIC_PASSWORD, else read from stdin)")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the admin session",
	RunE:  runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("MAGICPIC_PASSWORD")
	}

	in := bufio.NewReader(cmd.InOrStdin())
	if email == "" {
		fmt.Fprint(app.out, "Email: ")
		line, _ := in.ReadString('\n')
		email = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Fprint(app.out, "Password: ")
		line, _ := in.ReadString('\n')
		password = strings.TrimRight(line, "\r\n")
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	res, err := app.api.Login(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("login failed: %s", adminapi.UserMessage(err, err.Error()))
	}
	fmt.Fprintf(app.out, "Logged in as %s (%s)\n", res.Admin.Email, res.Admin.Role)
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the admin session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.api.Logout(cmd.Context()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: upstream logout failed: %v\n", err)
		}
		fmt.Fprintln(app.out, "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(cmd.Context()); err != nil {
			return err
		}
		admin, err := app.api.Me(cmd.Context())
		if err != nil {
			return fmt.Errorf("session check failed: %s", adminapi.UserMessage(err, err.Error()))
		}
		fmt.Fprintf(app.out, "%s <%s>\nrole: %s\n", admin.Name, admin.Email, admin.Role)
		if len(admin.Permissions) > 0 {
			fmt.Fprintf(app.out, "permissions: %s\n", strings.Join(admin.Permissions, ", "))
		}
		return nil
	},
}
