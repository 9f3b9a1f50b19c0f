package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/sessionscope/internal/httpapi"
	"github.com/nextlevelbuilder/sessionscope/internal/orchestrator"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the watcher, fan-out, search index, and REST/SSE server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(resolveConfigPath(), listenAddr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", ":8089", "address for the REST/SSE server to listen on")
	return cmd
}

func runServe(cfgPath, listenAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.New(cfgPath)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	server := httpapi.New(svc, svc.Logger(), listenAddr)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			svc.Logger().Warn("http server stopped with error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return svc.Stop(shutdownCtx)
}
