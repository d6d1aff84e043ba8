package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/meacode/host"
	"github.com/odvcencio/meacode/web"
)

const shutdownTimeout = 5 * time.Second

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the host: file system, shell, language servers, git and AI over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cache := a.newCache()
	h := host.New(a.hostConfig(), host.WithLogger(a.log), host.WithCache(cache))
	defer h.Close()

	srv := web.NewServer(h, web.WithLogger(a.log))
	httpSrv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", a.cfg.Addr).Str("workspace", h.Workspace()).Int("commands", len(h.Commands())).Msg("host listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cache.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	root := h.Workspace()
	watcher, err := host.NewWatcher(root, func() {
		srv.Broadcast("fs:changed", map[string]string{"root": root})
	}, a.log)
	if err != nil {
		a.log.Warn().Err(err).Str("root", root).Msg("file watching disabled")
	} else {
		defer watcher.Close()
		g.Go(func() error {
			watcher.Run(ctx)
			return nil
		})
	}

	return g.Wait()
}
