package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"example.com/backstage/services/logrouter/internal/api/handlers"
	"example.com/backstage/services/logrouter/internal/models"
)

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Process a captured Kinesis event",
	Long: `Process a Kinesis event JSON document from a file, or stdin when no file
is given, and print the invocation summary as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to open event file")
		}
		defer f.Close()
		in = f
	}

	c, err := buildComponents(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.close()

	return replay(cmd.Context(), in, c.pipeline, cmd.OutOrStdout())
}

// replay runs one captured event through the processor and writes the summary
func replay(ctx context.Context, in io.Reader, p handlers.Processor, out io.Writer) error {
	var event models.KinesisEvent
	if err := json.NewDecoder(in).Decode(&event); err != nil {
		return errors.Wrap(err, "invalid Kinesis event")
	}

	summary := p.Process(ctx, event.InputRecords())

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
