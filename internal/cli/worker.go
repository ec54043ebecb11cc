package cli

import (
	"fmt"
	"os"

	"github.com/joeycumines/go-asyncore"
	"github.com/spf13/cobra"
)

func newWorkerDemoCmd() *cobra.Command {
	var (
		a float64
		b float64
	)

	cmd := &cobra.Command{
		Use:   "worker-demo",
		Short: "Ask a worker process to add two numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return err
			}

			s, err := newScheduler()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var w *asyncore.Worker
			w, err = asyncore.Spawn(s, exe, func(v any) {
				fmt.Fprintf(out, "%v + %v = %v\n", a, b, v)
				if err := w.Send([]any{"stop"}); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "send: %v\n", err)
				}
			},
				asyncore.WithArgs("worker", "--log-level", flagLogLevel),
				asyncore.WithStdout(out),
				asyncore.WithDiagnostics(cmd.ErrOrStderr()),
			)
			if err != nil {
				return err
			}

			s.On(asyncore.EventWorkerExited, func(e *asyncore.Event) {
				fmt.Fprintf(out, "worker exited: %v\n", e.Arg(1))
			})

			if err := w.Send([]any{"add", a, b}); err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if err := ignoreCanceled(s.Run(ctx)); err != nil {
				_ = w.Kill()
				return err
			}
			return w.ExitErr()
		},
	}

	cmd.Flags().Float64Var(&a, "a", 1, "First operand")
	cmd.Flags().Float64Var(&b, "b", 2, "Second operand")

	return cmd
}

// newWorkerCmd is the child side of worker-demo.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Worker process for worker-demo",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newScheduler()
			if err != nil {
				return err
			}

			var m *asyncore.Master
			m, err = asyncore.NewMaster(s, func(v any) {
				if err := handleWorkerMessage(m, v); err != nil {
					logger.Err().Err(err).Log("bad message")
				}
			}, asyncore.WithMasterInput(cmd.InOrStdin()))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "worker ready")

			return s.Run(cmd.Context())
		},
	}
}

// handleWorkerMessage implements the demo protocol: ["add", a, b] replies
// with the sum, ["stop"] ends the channel.
func handleWorkerMessage(m *asyncore.Master, v any) error {
	msg, ok := v.([]any)
	if !ok || len(msg) == 0 {
		return fmt.Errorf("unexpected message %v", v)
	}
	switch msg[0] {
	case "add":
		var sum float64
		for _, arg := range msg[1:] {
			n, ok := arg.(float64)
			if !ok {
				return fmt.Errorf("add: not a number: %v", arg)
			}
			sum += n
		}
		return m.Send(sum)
	case "stop":
		m.Close()
		return nil
	default:
		return fmt.Errorf("unknown command %v", msg[0])
	}
}
