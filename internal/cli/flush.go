package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/wabridge/internal/config"
	"github.com/harun/wabridge/internal/logger"
	"github.com/harun/wabridge/pkg/session"
	"github.com/harun/wabridge/pkg/waclient"
)

var flushAll bool

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Delete persisted sessions",
	Long: `Delete persisted sessions from disk. By default only inactive sessions
are removed; --all deletes every session, connected or not.`,
	RunE: runFlush,
}

func init() {
	flushCmd.Flags().BoolVar(&flushAll, "all", false, "delete connected sessions too")
	rootCmd.AddCommand(flushCmd)
}

func runFlush(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer lg.Close()

	storage, err := session.NewStorage(cfg.SessionsPath)
	if err != nil {
		return err
	}

	manager := session.NewManager(cfg, session.NewRegistry(), storage, waclient.NewRodFactory())
	return manager.Flush(context.Background(), !flushAll)
}
