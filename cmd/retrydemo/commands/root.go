package commands

import (
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/retryme/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
	plain      bool
}

// NewRootCmd creates the retrydemo root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "retrydemo",
		Short: "Explore exponential backoff with jitter",
		Long: `retrydemo drives the backoff controller from the command line.

It prints the delay schedule a configuration produces and simulates many
flaky operations retried concurrently, reporting how each one ended.

Settings come from defaults, an optional YAML file (--config), a .env file
and RETRY_* environment variables, in increasing order of precedence.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.plain {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every attempt")
	cmd.PersistentFlags().BoolVar(&opts.plain, "plain", false, "disable colors")

	cmd.AddCommand(NewDelaysCmd(opts))
	cmd.AddCommand(NewRunCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelError
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
