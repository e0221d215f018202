package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/events"
	"github.com/alfredjeanlab/kquery/internal/fulltext"
	"github.com/alfredjeanlab/kquery/internal/indexsync"
)

var followCmd = &cobra.Command{
	Use:     "follow",
	Short:   "Keep a local full-text index replica current from NATS events",
	GroupID: "index",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		natsURL, _ := cmd.Flags().GetString("nats")
		dir, _ := cmd.Flags().GetString("index-dir")
		if natsURL == "" {
			return errors.New("--nats or KQ_NATS_URL is required")
		}

		ix, err := fulltext.Open(catalog.Default(), dir, logger)
		if err != nil {
			return err
		}
		defer ix.Close()

		sub, err := events.NewNATSSubscriber(natsURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		f := indexsync.NewFollower(sub, ix, logger)
		logger.Info("following events", "nats_url", natsURL, "index_dir", dir)
		err = f.Run(ctx)
		applied, failed := f.Stats()
		logger.Info("follower stopped", "applied", applied, "failed", failed, "dropped", sub.Dropped())
		return err
	},
}

func init() {
	followCmd.Flags().String("nats", os.Getenv("KQ_NATS_URL"), "NATS server URL")
	followCmd.Flags().String("index-dir", os.Getenv("KQ_INDEX_DIR"), "index directory (empty = in-memory)")
}
