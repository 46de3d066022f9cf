package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/chord/internal/repositories"
	"github.com/desertthunder/chord/internal/server"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the HTTP API, and optionally the matching schedule, until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	lifecycle, err := r.lifecycle(db)
	if err != nil {
		return err
	}

	var syncer server.ProfileSyncer
	if r.histories != nil {
		s, err := r.syncer(db)
		if err != nil {
			return err
		}
		syncer = s
	} else {
		r.logger.Warn("spotify credentials missing, profile sync disabled")
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger), server.Identify)

	server.NewAPI(lifecycle, repositories.NewUserRepository(db), syncer, r.logger).Register(router)
	if r.oauth != nil {
		server.NewConnectHandler(r.oauth, repositories.NewTokenRepository(db), syncer, r.logger).Register(router)
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(addr, router, r.logger)
	g.Go(func() error { return srv.Run(ctx) })

	if cmd.Bool("schedule") {
		scheduler, err := r.newScheduler(ctx, "")
		if err != nil {
			return err
		}
		scheduler.Start()
		r.logger.Info("matching scheduled", "next", scheduler.Next())

		g.Go(func() error {
			for {
				select {
				case result := <-scheduler.Results():
					r.logger.Info("matching run finished", "date", result.Date, "matches", result.MatchesCreated)
				case <-ctx.Done():
					stopCtx, cancel := context.WithTimeout(context.Background(), r.config.Matching.Timeout())
					defer cancel()
					return scheduler.Stop(stopCtx)
				}
			}
		})
	}

	r.writePlain("→ Serving on http://%s (Ctrl+C to stop)\n", addr)
	return g.Wait()
}
