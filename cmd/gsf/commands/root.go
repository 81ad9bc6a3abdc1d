// Package commands provides the CLI commands for the go-sharp-flow tool.
package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sharp-flow/internal/config"
	"github.com/l3aro/go-sharp-flow/internal/log"
)

// ErrFindings is returned by analyze when it reported at least one issue.
// main turns it into exit status 1 without printing it.
var ErrFindings = errors.New("issues found")

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gsf",
	Short: "go-sharp-flow - Path-sensitive flow analysis for C#",
	Long: `go-sharp-flow builds a control flow graph for every C# method and walks it
symbolically to find bugs that only show up on some execution paths.

Commands:
  analyze     Analyze files or directories and report issues
  cfg         Print the control flow graph of methods in a file
  init        Create a configuration file interactively
  rules       List the available rules
  version     Print version information

Use "gsf [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file (default: .gsf/config.yaml, then ~/.gsf/config.yaml)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
}

// loadConfig resolves configuration and applies the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if cmd.Flags().Changed("json-logs") {
		cfg.JSONLogs, _ = cmd.Flags().GetBool("json-logs")
	}
	return cfg, nil
}

// newLogger builds the run logger from configuration.
func newLogger(cmd *cobra.Command, cfg *config.Config) log.Logger {
	return log.New(log.LoggerConfig{
		Level:      cfg.Level(),
		JSONOutput: cfg.JSONLogs,
		Stderr:     cmd.ErrOrStderr(),
	})
}
