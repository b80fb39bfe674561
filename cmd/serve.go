package cmd

import (
	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/tictactoe-arena/internal"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, logger, err := load(*configPath)
			if err != nil {
				return err
			}

			return app.RunApp(cmd.Context(), logger, conf)
		},
	}
}
