package main

import (
	"log/slog"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kquery/internal/ui"
)

var (
	jsonOutput bool
	userName   string
	roleList   string
	verbose    bool
)

func defaultUser() string {
	if s := os.Getenv("KQ_USER"); s != "" {
		return s
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var rootCmd = &cobra.Command{
	Use:           "kq <command>",
	Short:         "Search beads across Postgres and full-text indexes",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(ui.ColorEnabled(cmd.OutOrStdout()) && !jsonOutput)
		slog.SetDefault(newLogger())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&userName, "user", defaultUser(), "user to search as")
	rootCmd.PersistentFlags().StringVar(&roleList, "roles", strings.TrimSpace(os.Getenv("KQ_ROLES")), "comma-separated roles")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Query:"},
		&cobra.Group{ID: "index", Title: "Indexes:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
