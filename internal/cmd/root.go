/*
Package cmd provides the CLI commands for notifyevents.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/notifyevents/internal/config"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	cfgFile string
	verbose bool
	debug   bool
}

// Execute builds the command tree and runs it against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand returns the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "notifyevents",
		Short: "Send notifications to Notify.Events channels",
		Long: `notifyevents sends a message, with optional attachments and action
buttons, to a channel configured on the Notify.Events service.

Example:
  notifyevents send --token $TOKEN --content "Backup finished"
  df -h | notifyevents send --content - --level warning
  notifyevents send --file /var/log/app.log --image https://example.com/graph.png
  notifyevents check                     # Validate .notifyevents.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging(opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug output")

	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func initLogging(opts *globalOptions) {
	log.SetOutput(os.Stderr)
	if opts.debug {
		log.SetLevel(log.DebugLevel)
	} else if opts.verbose {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

// loadConfig reads the configuration named by --config, falling back to
// DefaultPath when it exists and to built-in defaults otherwise.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	path := opts.cfgFile
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err != nil {
			log.Debug("No config file, using defaults")
			return config.Defaults(), nil
		}
		path = config.DefaultPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Debug("Loaded config", "path", path)
	return cfg, nil
}
