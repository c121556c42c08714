// Package main is the entry point for the stamp card server.
//
// The main package stays minimal: read configuration, build the logger and
// the store, then hand them to internal/server. All logic lives in the
// internal packages.
//
// COMMANDS:
//
//	stampcard               same as "stampcard serve"
//	stampcard serve         run the HTTP API
//	stampcard check-store   write, read and delete a probe document, then exit
//
// Configuration comes from the environment (see internal/config); a .env
// file is read first when present.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/config"
	"github.com/sakif/stampcard/internal/metrics"
	"github.com/sakif/stampcard/internal/server"
	"github.com/sakif/stampcard/internal/service"
)

type rootOptions struct {
	envFile string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	serve := newServeCommand(opts)
	cmd := &cobra.Command{
		Use:           "stampcard",
		Short:         "Conference stamp card API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(serve)
	cmd.AddCommand(newCheckStoreCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stdout)

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, store, logger)
			if err != nil {
				store.Close()
				return err
			}

			// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
			return srv.Start()
		},
	}
}

func newCheckStoreCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-store",
		Short: "Round-trip a probe document through the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			// Logs go to stderr so stdout carries only the JSON result.
			logger := newLogger(cfg, cmd.ErrOrStderr())

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			check, err := service.NewAdminService(store, logger, metrics.Nop{}).CheckStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("store check failed: %s", apperror.Detail(err))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(check)
		},
	}
}

// newLogger writes text (development) or JSON (production) logs to w.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
