package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/matheus3301/wamcp/internal/daemon"
	"github.com/matheus3301/wamcp/internal/logging"
	"github.com/matheus3301/wamcp/internal/session"
	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Unlink this session from the phone",
		Long:  "Unlink this session from the phone. The message store is kept; run `wamcpd pair` to link again.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(session.Dir(o.Session)); err != nil {
				return fmt.Errorf("session %q does not exist", o.Session)
			}
			logger, err := logging.New(session.LogPath(o.Session), o.Session, o.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.ErrOrStderr()
			err = daemon.Logout(ctx, o.params(), logger)
			if errors.Is(err, daemon.ErrNotPaired) {
				_, _ = fmt.Fprintf(out, "Session %q is not linked.\n", o.Session)
				return nil
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Session %q unlinked.\n", o.Session)
			return nil
		},
	}
}
