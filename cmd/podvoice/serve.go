package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"podvoice/internal/catalog"
	"podvoice/internal/logging"
	"podvoice/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and browser player",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind != "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				cfg.Server.Bind = bind
			}
			return runServer(cmd.Context(), ctx)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind (host:port)")
	return cmd
}

func runServer(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lock, err := ctx.acquireLock("server", "server")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	hub := logging.NewStreamHub(4096)
	logger, err := ctx.logger(hub)
	if err != nil {
		return err
	}

	directory, err := ctx.directory(logger)
	if err != nil {
		return err
	}

	store, err := catalog.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open catalog", logging.Error(err))
		return err
	}
	defer store.Close()

	server, err := web.New(cfg, directory, store,
		web.WithLogger(logger),
		web.WithLogHub(hub),
		web.WithVersion(version),
	)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := server.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	server.Stop()
	logger.Info("podvoice server shutting down")
	return nil
}
