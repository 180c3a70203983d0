package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arklight/sessiond/internal/config"
	"github.com/arklight/sessiond/server"
	"github.com/arklight/sessiond/sessions"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const appName = "sessiond"

const shutdownTimeout = 5 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Session-gating authentication proxy for Microsoft identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the sessioned HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.GetVerbose() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	displayAppname(appName)

	var opts []server.Option
	if addr := cfg.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		opts = append(opts, server.WithSessionStore(
			sessions.NewRedisStore(client, sessions.New, cfg.GetSessionTTL())))
		log.Info().Str("addr", addr).Msg("using redis session store")
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.GetHost(), cfg.GetPort()),
		Handler: srv,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Str("strategy", cfg.GetAuthStrategy()).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("httpServer.ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpServer.Shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
