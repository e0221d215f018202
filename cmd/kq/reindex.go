package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:     "reindex [entity...]",
	Short:   "Rebuild on-disk full-text indexes from Postgres",
	GroupID: "index",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("KQ_INDEX_DIR") == "" {
			return errors.New("KQ_INDEX_DIR is not set; in-memory indexes are rebuilt on every start")
		}
		logger := newLogger()
		b, err := openBackend(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := os.MkdirAll(b.cfg.IndexDir, 0o755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
		lock := flock.New(filepath.Join(b.cfg.IndexDir, ".reindex.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("lock index dir: %w", err)
		}
		if !locked {
			return fmt.Errorf("another reindex holds %s", lock.Path())
		}
		defer lock.Unlock()

		entities := args
		if len(entities) == 0 {
			entities = b.catalog.Names()
		}
		if err := b.rebuild(cmd.Context(), entities, logger); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s\n", strings.Join(entities, ", "))
		return nil
	},
}
