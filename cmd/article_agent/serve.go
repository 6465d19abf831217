package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/article-agent/internal/server"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server exposing writing tasks, their log streams and the channel catalog.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply the Postgres schema before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveMigrate {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	addr := a.cfg.Server.Addr
	if cmd.Flags().Changed("port") {
		addr = fmt.Sprintf(":%d", servePort)
	}

	srv, err := server.New(server.Options{
		Addr:            addr,
		Controller:      a.controller,
		Catalog:         a.catalog,
		Auth:            a.cfg.Auth,
		Logger:          a.logger,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run(ctx)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func (a *app) migrate(ctx context.Context) error {
	if a.database == nil {
		return errors.New("migrate requires the postgres backend")
	}
	return a.database.Migrate(ctx)
}
