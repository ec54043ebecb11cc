package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/joeycumines/go-asyncore"
	"github.com/joeycumines/go-asyncore/internal/config"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		flagConfig   string
		flagListen   []string
		flagCert     string
		flagKey      string
		flagGreeting string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Greet every client on the configured endpoints, then close",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if flagConfig != "" {
				var err error
				if cfg, err = config.Load(flagConfig); err != nil {
					return err
				}
				if !cmd.Flags().Changed("log-level") {
					logger = newLogger(cmd.ErrOrStderr(), cfg.Level())
				}
			}
			if len(flagListen) > 0 {
				cfg.Endpoints = cfg.Endpoints[:0]
				for _, address := range flagListen {
					cfg.Endpoints = append(cfg.Endpoints, config.Endpoint{
						Address:  address,
						CertFile: flagCert,
						KeyFile:  flagKey,
					})
				}
			}
			if cmd.Flags().Changed("greeting") {
				cfg.Greeting = flagGreeting
			}
			if len(cfg.Endpoints) == 0 {
				cfg.Endpoints = []config.Endpoint{{Address: "127.0.0.1:8080", CertFile: flagCert, KeyFile: flagKey}}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			s, err := newScheduler()
			if err != nil {
				return err
			}

			srv, err := listen(s, cfg)
			if err != nil {
				return err
			}
			defer srv.Close()

			for _, e := range srv.Endpoints() {
				fmt.Fprintf(cmd.OutOrStdout(), "listening on %s (tls=%v)\n", e.Addr(), e.TLS())
			}

			srv.OnClient(greeter(s, cfg.Greeting))

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return ignoreCanceled(s.Run(ctx))
		},
	}

	cmd.Flags().StringVar(&flagConfig, "config", "", "YAML config file")
	cmd.Flags().StringSliceVar(&flagListen, "listen", nil, "Listen address, may be repeated (overrides the config file)")
	cmd.Flags().StringVar(&flagCert, "cert", "", "PEM certificate file, enables TLS with --key")
	cmd.Flags().StringVar(&flagKey, "key", "", "PEM private key file, enables TLS with --cert")
	cmd.Flags().StringVar(&flagGreeting, "greeting", "", "Banner written to every client")

	return cmd
}

func listen(s *asyncore.Scheduler, cfg config.Config) (*asyncore.Server, error) {
	var endpoints []*asyncore.Endpoint
	closeAll := func() {
		for _, e := range endpoints {
			_ = e.Close()
		}
	}
	for _, ec := range cfg.Endpoints {
		opts := []asyncore.EndpointOption{asyncore.WithHandshakeTimeout(cfg.HandshakeTimeout)}
		if ec.TLS() {
			opts = append(opts, asyncore.WithCertificateFiles(ec.CertFile, ec.KeyFile))
		}
		e, err := asyncore.Listen(ec.Address, opts...)
		if err != nil {
			closeAll()
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	srv, err := asyncore.NewServer(s, endpoints...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return srv, nil
}

// greeter writes greeting to each client from a task of its own, closing the
// connection once written.
func greeter(s *asyncore.Scheduler, greeting string) asyncore.ClientHandler {
	return func(conn net.Conn) {
		remaining := []byte(greeting)
		var task *asyncore.Task
		task, err := s.Add(func(bool) {
			// the deadline keeps the write from blocking the loop
			_ = conn.SetWriteDeadline(time.Now().Add(time.Millisecond))
			n, err := conn.Write(remaining)
			remaining = remaining[n:]
			var ne net.Error
			failed := err != nil && !(errors.As(err, &ne) && ne.Timeout())
			if failed || len(remaining) == 0 {
				task.Remove()
				_ = conn.Close()
			}
		}, asyncore.DefaultPeriod, asyncore.CallImmediately())
		if err != nil {
			_ = conn.Close()
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
