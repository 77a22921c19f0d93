package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oarkflow/notifyevents"
	"github.com/oarkflow/notifyevents/internal/config"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check configuration file",
		Long: `Check if the configuration file is valid.

This validates:
  - YAML syntax
  - Include statements
  - Endpoint and timeout
  - Message priority and level
  - Action callback URLs
  - Template syntax`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := opts.cfgFile
			if configPath == "" {
				configPath = config.DefaultPath
			}

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				return fmt.Errorf("config file not found: %s", configPath)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration file %s is valid\n", configPath)
			return nil
		},
	}
}

func newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Long: `Initialize a new .notifyevents.yaml configuration file.

This creates a basic configuration file that you can customize
with your token, message defaults and actions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := config.DefaultPath
			if opts.cfgFile != "" {
				configPath = opts.cfgFile
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			if err := os.WriteFile(configPath, []byte(config.DefaultTemplate()), 0600); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created %s\n", configPath)
			fmt.Fprintln(out, "\nEdit this file to set your token and message defaults.")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit, and build date of notifyevents.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "notifyevents %s\n", notifyevents.Version)
			if notifyevents.GitCommit != "" {
				fmt.Fprintf(out, "  Commit: %s\n", notifyevents.GitCommit)
			}
			if notifyevents.BuildDate != "" {
				fmt.Fprintf(out, "  Built:  %s\n", notifyevents.BuildDate)
			}
		},
	}
}
