package cmd

import (
	"fmt"
	"github.com/fzft/go-mock-epoll/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"os"
)

type Options struct {
	LogLevel    string
	DevLog      bool
	History     bool
	RCFile      string
	MetricsAddr string
	Script      string
}

// NewRootCommand returns the epoll-cli command. version is printed by
// --version.
func NewRootCommand(version string) *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "epoll-cli",
		Short:         "Interactive shell for the edge-triggered readiness engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.DevLog, "dev-log", false, "human readable console logs")
	flags.BoolVar(&opts.History, "history", true, "keep a history file in interactive mode")
	flags.StringVar(&opts.RCFile, "rc", "", "preferences file (default $"+EpollCliRCFileEnv+" or ~/"+EpollCliRCFileDefault+")")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flags.StringVar(&opts.Script, "script", "", "run commands from a file instead of stdin")
	return root
}

func run(cmd *cobra.Command, opts *Options) error {
	prefs, err := cliLoadPreferences(opts.RCFile)
	if err != nil {
		return err
	}

	level := opts.LogLevel
	if !cmd.Flags().Changed("log-level") && prefs.LogLevel != "" {
		level = prefs.LogLevel
	}
	if err := log.InitLogger(level, opts.DevLog); err != nil {
		return err
	}
	defer log.Sync()

	cli := NewEpollCli(cmd.OutOrStdout(), prefs)
	if opts.MetricsAddr != "" {
		stop := cli.serveMetrics(opts.MetricsAddr)
		defer stop()
	}

	if opts.Script != "" {
		f, err := os.Open(opts.Script)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		err = cli.RunScript(f)
		return multierr.Combine(err, cli.Close())
	}

	in, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		err = cli.RunScript(cmd.InOrStdin())
	} else {
		err = cli.Run(in, opts.History)
	}
	return multierr.Combine(err, cli.Close())
}
