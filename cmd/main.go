package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	cfgPkg "github.com/xhad/labtest/pkg/config"
	"github.com/xhad/labtest/pkg/logger"
)

// exitError ends the process with code after printing msg in red.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

type app struct {
	configPath string
	logLevel   string

	config *cfgPkg.Config
	logger *log.Logger
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		red := color.New(color.FgRed)
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.msg != "" {
				red.Fprintln(os.Stderr, exitErr.msg)
			}
			os.Exit(exitErr.code)
		}
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "labtest",
		Short:         "Test tuned models and prepare knowledge documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newTestCmd(a), newChunkCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := cfgPkg.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(validationErrors(errs)...))
	}

	level := cfg.Log.Level
	if cmd.Flags().Changed("log-level") {
		level = a.logLevel
	}

	a.config = cfg
	a.stderr = cmd.ErrOrStderr()
	a.logger = logger.New(a.stderr, level)
	return nil
}

func validationErrors(errs []cfgPkg.ValidationError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}
