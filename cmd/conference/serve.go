package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on http.DefaultServeMux
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/thesyncim/confcheck/cmd/conference/server"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "conference",
		Short:         "conference - publisher and viewer apps with a media relay",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	root.AddCommand(newServeCmd())
	return root
}

type serveOptions struct {
	cfg       server.Config
	pprofAddr string
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{cfg: server.DefaultConfig()}
	opts.cfg.Addr = ":8080"

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the applications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			opts.cfg.Logger = newLogger(level)
			return serve(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.cfg.Addr, "addr", opts.cfg.Addr, "HTTP listen address")
	f.DurationVar(&opts.cfg.KeyframeInterval, "keyframe-interval", 0, "ask publishers for a keyframe this often (0 disables)")
	f.DurationVar(&opts.cfg.KeyframeSpacing, "keyframe-spacing", opts.cfg.KeyframeSpacing, "least time between two keyframe requests")
	f.Uint16Var(&opts.cfg.UDPPortMin, "udp-port-min", 0, "lowest ICE UDP port")
	f.Uint16Var(&opts.cfg.UDPPortMax, "udp-port-max", 0, "highest ICE UDP port")
	f.StringVar(&opts.cfg.PublicIP, "public-ip", "", "IP announced in host candidates")
	f.BoolVar(&opts.cfg.IncludeLoopback, "include-loopback", opts.cfg.IncludeLoopback, "gather loopback candidates")
	f.StringVar(&opts.pprofAddr, "pprof-addr", "", "serve /debug/pprof on this address")
	return cmd
}

func newLogger(level string) *log.Logger {
	return &log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "15:04:05.000",
		Writer:     &log.ConsoleWriter{Writer: os.Stderr, QuoteString: true},
	}
}

func serve(ctx context.Context, opts serveOptions) error {
	logger := opts.cfg.Logger
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(opts.cfg)
	if err != nil {
		return err
	}
	if _, err := srv.Start(); err != nil {
		return err
	}
	logger.Info().Str("publisher", srv.URL()+"/publisher").Str("viewer", srv.URL()+"/viewer").Msg("apps ready")

	if opts.pprofAddr != "" {
		go func() {
			logger.Info().Str("addr", opts.pprofAddr).Msg("pprof listening")
			if err := http.ListenAndServe(opts.pprofAddr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("pprof server stopped")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
