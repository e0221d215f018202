package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kquery/internal/export"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Run saved export jobs once",
	GroupID: "query",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		b, err := openBackend(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer b.Close()

		path, _ := cmd.Flags().GetString("jobs")
		if path == "" {
			path = b.cfg.ExportFile
		}
		stdout, _ := cmd.Flags().GetBool("stdout")
		var extra []export.Destination
		if stdout {
			extra = append(extra, export.NewWriterDestination(cmd.OutOrStdout()))
		}

		s, err := newExportScheduler(cmd.Context(), b, path, extra, logger)
		if err != nil {
			return err
		}
		return s.RunOnce(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().String("jobs", "", "YAML job file (default $KQ_EXPORT_FILE)")
	exportCmd.Flags().Bool("stdout", false, "also write JSONL to stdout")
}

// newExportScheduler loads jobs from path and builds destinations from the
// configured S3 bucket plus extra.
func newExportScheduler(ctx context.Context, b *backend, path string, extra []export.Destination, logger *slog.Logger) (*export.Scheduler, error) {
	if path == "" {
		return nil, errors.New("no export job file (set KQ_EXPORT_FILE or --jobs)")
	}
	jobs, err := export.LoadJobs(path)
	if err != nil {
		return nil, err
	}

	dests := append([]export.Destination(nil), extra...)
	cfg := b.cfg
	if cfg.ExportS3Bucket != "" {
		d, err := export.NewS3Destination(ctx, cfg.ExportS3Bucket, cfg.ExportS3Prefix, cfg.ExportS3Region, cfg.ExportS3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create S3 destination: %w", err)
		}
		dests = append(dests, d)
		logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "prefix", cfg.ExportS3Prefix)
	}
	if len(dests) == 0 {
		return nil, errors.New("no export destinations (set KQ_EXPORT_S3_BUCKET or pass --stdout)")
	}
	return export.NewScheduler(b.searcher, exportChecker, jobs, dests, cfg.ExportInterval, logger), nil
}
