package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coldforge/syncpod/internal/config"
	"github.com/coldforge/syncpod/internal/syncclient"
)

func newRegisterCmd() *cobra.Command {
	var email, username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if cc.Cfg.URL == "" {
				return fmt.Errorf("url not configured — set it in %s first", resolveConfigPath())
			}

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			_, err = syncclient.Register(cmd.Context(), cc.Cfg.URL, config.DefaultSessionPath(), email, username, password, cc.Logger)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}

			cc.Statusf("Registered and logged in as %s.\n", email)

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("username")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and save the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if cc.Cfg.URL == "" {
				return fmt.Errorf("url not configured — set it in %s first", resolveConfigPath())
			}

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			_, err = syncclient.Login(cmd.Context(), cc.Cfg.URL, config.DefaultSessionPath(), email, password, cc.Logger)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			cc.Statusf("Logged in as %s.\n", email)

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := syncclient.Logout(config.DefaultSessionPath(), cc.Logger); err != nil {
				return err
			}

			cc.Statusf("Logged out.\n")

			return nil
		},
	}
}

// readPassword prompts on stderr and reads a line from stdin. No pack
// example does terminal echo suppression, so this is a plain line read
// rather than a masked prompt.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
