package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/tictactoe-arena/internal"
)

func newReapCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Remove stale and finished rooms once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, logger, err := load(*configPath)
			if err != nil {
				return err
			}

			removed, err := app.RunReap(cmd.Context(), logger, conf)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d rooms\n", removed)
			return err
		},
	}
}
