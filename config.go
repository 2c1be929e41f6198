package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved config.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			return printConfig(cc)
		},
	}
}

// configView is the printable projection of config.Config — credentials are
// summarized as a boolean rather than printed, since config.json routinely
// holds a plaintext password.
type configView struct {
	Path            string `json:"path"`
	URL             string `json:"url,omitempty"`
	SyncDir         string `json:"sync_dir,omitempty"`
	HasCredentials  bool   `json:"has_credentials"`
	CredentialEmail string `json:"credential_email,omitempty"`
}

func printConfig(cc *CLIContext) error {
	view := configView{
		Path:    cc.Flags.ConfigPath,
		URL:     cc.Cfg.URL,
		SyncDir: cc.Cfg.SyncDir,
	}

	if cc.Cfg.Credentials != nil {
		view.HasCredentials = true
		view.CredentialEmail = cc.Cfg.Credentials.Email
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(view)
	}

	fmt.Printf("Config path: %s\n", view.Path)
	fmt.Printf("URL:         %s\n", placeholder(view.URL))
	fmt.Printf("Sync dir:    %s\n", placeholder(view.SyncDir))

	if view.HasCredentials {
		fmt.Printf("Credentials: saved (%s)\n", placeholder(view.CredentialEmail))
	} else {
		fmt.Println("Credentials: none saved")
	}

	return nil
}

func placeholder(s string) string {
	if s == "" {
		return "(not set)"
	}

	return s
}
