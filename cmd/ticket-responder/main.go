// cmd/ticket-responder/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ticket-responder/internal/common/config"
	"ticket-responder/internal/common/logger"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "ticket-responder",
		Short:         "Answer resolved support tickets from curated comments and reference documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config.yaml (default: configs/config.yaml plus config.<APP_ENVIRONMENT>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCommand(opts),
		newWorkerCommand(opts),
		newCheckCommand(opts),
	)

	return cmd
}

// setup loads the configuration and builds the process logger from it.
func setup(opts *options) (*config.Config, *zap.Logger, logger.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, nil, err
	}

	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	zapLog := logger.New(logger.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})
	return cfg, zapLog, logger.NewZapAdapter(zapLog), nil
}
