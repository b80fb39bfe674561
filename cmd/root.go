package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rocketscienceinc/tictactoe-arena/internal/config"
)

const defaultConfigPath = "config.yml"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tictactoe",
		Short:         "Tic-tac-toe server with AI opponents and two-player rooms",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the yaml config file")

	serveCmd := newServeCmd(&configPath)
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(
		serveCmd,
		newReapCmd(&configPath),
	)

	return rootCmd
}

func load(configPath string) (*config.Config, *slog.Logger, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	return conf, newLogger(conf.LogLevel), nil
}

// newLogger builds the JSON logger; unknown levels fall back to info.
func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level

	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
