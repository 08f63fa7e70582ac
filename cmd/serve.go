package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rostermap/internal/server"
)

var (
	servePort     int
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync the roster on an interval and serve the live map",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveInterval != 0 {
			cfg.Sync.Interval = serveInterval
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		srv, err := server.New(server.Deps{
			Syncer:   eng.Scheduler,
			Entities: eng.Store,
			Layer:    eng.Layer,
			Geocoder: eng.Geocoder,
		}, server.Options{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			Map: server.MapOptions{
				Title:     cfg.Map.Title,
				TileURL:   cfg.Map.TileURL,
				CenterLat: cfg.Map.CenterLat,
				CenterLon: cfg.Map.CenterLon,
				Zoom:      cfg.Map.Zoom,
				Refresh:   cfg.Sync.Interval,
			},
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return eng.Scheduler.Start(gctx, cfg.Sync.Interval)
		})
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		zap.L().Info("rostermap serving",
			zap.Int("port", cfg.Server.Port),
			zap.Duration("interval", cfg.Sync.Interval),
		)
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "sync interval (default from config)")
	rootCmd.AddCommand(serveCmd)
}
