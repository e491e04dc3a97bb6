package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todoku/internal/devgateway"
	"github.com/Makepad-fr/todoku/internal/tui"
)

func newUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Interactive screens: login/register, list and profile",
		Args:  exactArgs(0, "todoku ui"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), tui.Deps{
				Sessions: a.sessions,
				Todos:    a.todos,
				Profile:  a.profile,
			})
		},
	}
}

func newDevServerCmd(a *app) *cobra.Command {
	var addr, driver, dsn, anonKey string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in for the hosted service",
		Args:  exactArgs(0, "todoku devserver [--addr A] [--driver D] [--dsn DSN]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			ds := a.cfg.DevServer
			if !flags.Changed("addr") {
				addr = ds.Addr
			}
			if !flags.Changed("driver") {
				driver = ds.Driver
			}
			if !flags.Changed("dsn") {
				dsn = ds.DSN
			}
			if !flags.Changed("anon-key") {
				anonKey = ds.AnonKey
			}
			if !slices.Contains(devgateway.Drivers, driver) {
				return usageErrorf("devserver: unknown driver %q (want %s)", driver, strings.Join(devgateway.Drivers, ", "))
			}
			return a.serve(cmd.Context(), addr, driver, dsn, anonKey)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&driver, "driver", "", "storage: "+strings.Join(devgateway.Drivers, ", "))
	cmd.Flags().StringVar(&dsn, "dsn", "", "file path or database DSN for the driver")
	cmd.Flags().StringVar(&anonKey, "anon-key", "", "required apikey header (empty accepts any)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr, driver, dsn, anonKey string) error {
	store, err := devgateway.Open(ctx, driver, dsn)
	if err != nil {
		return err
	}
	gw := devgateway.New(store, devgateway.Options{
		AnonKey:   anonKey,
		JWTSecret: []byte(a.cfg.DevServer.JWTSecret),
		Logger:    log.New(a.io.ErrOut, "devgateway ", log.LstdFlags),
	})
	defer gw.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           gw,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	fmt.Fprintf(a.io.Out, "devgateway listening on http://%s (driver %s)\n", addr, driver)

	select {
	case err := <-errc:
		return fmt.Errorf("devserver: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("devserver shutdown: %w", err)
	}
	return nil
}
