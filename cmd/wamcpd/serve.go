package main

import (
	"github.com/matheus3301/wamcp/internal/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session daemon and serve MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			app := fx.New(daemon.Module(o.params()))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
