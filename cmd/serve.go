package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/api"
	"github.com/Tiliavir/punch-clock/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the punch editor as a JSON API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Cancellable root context bound to SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.log = logger.New("punch").Level(logger.ParseLevel(a.cfg.LogLevel))

	accounts, err := a.accounts()
	if err != nil {
		return err
	}
	writer := a.newWriter()
	srv := api.New(a.rules, a.store, writer, accounts, a.log)

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", addr).
			Str("store", a.cfg.Store.Driver).
			Str("account", a.cfg.Account.Mode).
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown on context cancel or server error.
	select {
	case <-ctx.Done():
		a.log.Info().Msg("Shutting down server")
	case err := <-errCh:
		a.log.Error().Stack().Err(err).Msg("HTTP server failed")
		_ = writer.Close()
		return err
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownErr := server.Shutdown(ctxShutdown)
	srv.Close()
	if err := writer.Flush(ctxShutdown); err != nil {
		a.log.Error().Err(err).Msg("pending punches not saved")
	}
	_ = writer.Close()
	if shutdownErr != nil {
		a.log.Error().Stack().Err(shutdownErr).Msg("Server forced to shutdown")
		return shutdownErr
	}
	a.log.Info().Msg("Server exited")
	return nil
}
