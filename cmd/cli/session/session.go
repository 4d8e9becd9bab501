package session

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crucial707/labstock/cmd/cli/client"
	"github.com/crucial707/labstock/cmd/cli/config"
)

// InitSession registers login and logout on the root command.
func InitSession(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd())
}

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store a session token",
		Long:  "Authenticate against the labstock server and store the session token for later commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			res, err := client.New(config.APIURL(), "").Login(context.Background(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if res.Token == "" {
				return fmt.Errorf("login succeeded but no token returned")
			}
			if err := config.SaveToken(res.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Printf("Logged in as %s (role %s).\n", username, res.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username to authenticate as")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RemoveToken(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}
