// Package cli implements the asyncore command.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/go-asyncore"
	"github.com/joeycumines/go-asyncore/internal/config"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
)

var (
	flagLogLevel string

	logger *logiface.Logger[logiface.Event]
)

// NewRootCmd creates the root cobra command for the asyncore CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "asyncore",
		Short: "Cooperative event loop demos",
		Long:  "asyncore runs demonstrations of the asyncore scheduler, worker channel and acceptor.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := config.ParseLevel(flagLogLevel)
			if err != nil {
				return err
			}
			logger = newLogger(cmd.ErrOrStderr(), level)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (trace, debug, info, warning, err, off)")

	root.AddCommand(
		newIntervalsCmd(),
		newServeCmd(),
		newWorkerDemoCmd(),
		newWorkerCmd(),
	)

	return root
}

// newLogger writes JSON lines to w.
func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

func newScheduler() (*asyncore.Scheduler, error) {
	return asyncore.New(asyncore.WithLogger(logger))
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
