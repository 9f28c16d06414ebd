package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/logrouter/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Firehose HTTP endpoint",
	Long:  `Start an HTTP server accepting Firehose HTTP endpoint deliveries, with /metrics and /health`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	server := api.NewServer(cfg.Server, c.pipeline, c.metrics)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	// Periodically forget indices outside the retention window
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Cache.PruneInterval),
			gocron.NewTask(func() {
				removed := c.prune(cfg.Cache.RetentionDays, time.Now())
				log.Debug().Int("removed", removed).Msg("Pruned known index cache")
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()
		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server error")
		return err
	}

	log.Info().Msg("Server shutting down gracefully")
	return nil
}
