package cli

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-asyncore"
	"github.com/spf13/cobra"
)

func newIntervalsCmd() *cobra.Command {
	var (
		fast time.Duration
		slow time.Duration
	)

	cmd := &cobra.Command{
		Use:   "intervals",
		Short: "Print on two intervals and echo stdin; type shutdown to exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newScheduler()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := s.Add(func(late bool) {
				fmt.Fprintf(out, "every %v (late=%v)\n", fast, late)
			}, fast); err != nil {
				return err
			}
			if _, err := s.Add(func(late bool) {
				fmt.Fprintf(out, "every %v (late=%v)\n", slow, late)
			}, slow); err != nil {
				return err
			}

			asyncore.InitStdin(s, asyncore.WithStdinReader(cmd.InOrStdin()))
			s.On(asyncore.EventStdinLine, func(e *asyncore.Event) {
				line, _ := e.Arg(0).(string)
				fmt.Fprintf(out, "stdin: %q\n", line)
				if line == "shutdown" {
					s.Exit()
				}
			})

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return ignoreCanceled(s.Run(ctx))
		},
	}

	cmd.Flags().DurationVar(&fast, "fast", time.Second, "Period of the first task")
	cmd.Flags().DurationVar(&slow, "slow", 3*time.Second, "Period of the second task")

	return cmd
}
