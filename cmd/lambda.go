package cmd

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/logrouter/internal/models"
	"example.com/backstage/services/logrouter/internal/pipeline"
)

// Lambda handler modes
const (
	modeRouter    = "router"
	modeTransform = "transform"
)

var lambdaMode string

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda handler",
	Long: `Run as an AWS Lambda handler.

  router     Kinesis Data Streams trigger; bulk-writes documents and returns a summary
  transform  Firehose data transformation; returns one document per record`,
	RunE: runLambda,
}

func init() {
	lambdaCmd.Flags().StringVar(&lambdaMode, "mode", modeRouter, "handler mode (router, transform)")
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, args []string) error {
	c, err := buildComponents(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	switch lambdaMode {
	case modeRouter:
		log.Info().Str("mode", lambdaMode).Msg("Starting Lambda handler")
		lambda.Start(routerHandler(c.pipeline))
	case modeTransform:
		log.Info().Str("mode", lambdaMode).Msg("Starting Lambda handler")
		lambda.Start(transformHandler(c.pipeline))
	default:
		return errors.Errorf("unknown lambda mode %q", lambdaMode)
	}
	return nil
}

func routerHandler(p *pipeline.Pipeline) func(context.Context, models.KinesisEvent) (models.Summary, error) {
	return func(ctx context.Context, event models.KinesisEvent) (models.Summary, error) {
		logger := log.With().Str("aws_request_id", requestID(ctx)).Logger()

		summary := p.Process(ctx, event.InputRecords())
		if summary.TransportError != "" {
			logger.Error().Str("error", summary.TransportError).Msg("Bulk write failed for invocation")
		}
		return summary, nil
	}
}

func transformHandler(p *pipeline.Pipeline) func(context.Context, events.KinesisFirehoseEvent) (events.KinesisFirehoseResponse, error) {
	return func(ctx context.Context, event events.KinesisFirehoseEvent) (events.KinesisFirehoseResponse, error) {
		log.Debug().Str("aws_request_id", requestID(ctx)).Int("records", len(event.Records)).Msg("Transform invocation")
		return p.Transform(ctx, event), nil
	}
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}
