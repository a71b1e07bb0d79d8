package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"

	"github.com/matheus3301/wamcp/internal/config"
	"github.com/matheus3301/wamcp/internal/daemon"
	"github.com/matheus3301/wamcp/internal/logging"
	"github.com/matheus3301/wamcp/internal/session"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Link this session to a phone by scanning a QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(session.LogPath(o.Session), o.Session, o.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.ErrOrStderr()
			err = daemon.Pair(ctx, o.params(), func(code string) { showQR(out, code) }, logger)
			if errors.Is(err, daemon.ErrAlreadyPaired) {
				_, _ = fmt.Fprintf(out, "Session %q is already linked.\n", o.Session)
				return nil
			}
			if err != nil {
				return err
			}
			if err := rememberSession(session.ConfigPath(), o.Session); err != nil {
				logger.Warn("could not write config", zap.Error(err))
			}
			_, _ = fmt.Fprintf(out, "Session %q linked. Start it with `wamcpd serve --session %s`.\n", o.Session, o.Session)
			return nil
		},
	}
}

// rememberSession writes a config file naming the first linked session as
// the default. An existing config is left alone.
func rememberSession(path, name string) error {
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cfg := config.Default()
	cfg.DefaultSession = name
	return config.Save(path, cfg)
}

func showQR(w io.Writer, code string) {
	_, _ = fmt.Fprintf(w, "\n  Scan this QR code with WhatsApp (Linked devices > Link a device):\n\n%s\n", renderQR(code))
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
