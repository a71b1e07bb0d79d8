// Command wamcpd serves a WhatsApp session to MCP clients.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wamcpd",
		Short:        "WhatsApp MCP server",
		Version:      version,
		SilenceUsage: true,
	}
	addSessionFlags(cmd.PersistentFlags())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPairCmd())
	cmd.AddCommand(newLogoutCmd())
	return cmd
}
