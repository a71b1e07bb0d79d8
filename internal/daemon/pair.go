package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/lock"
	"github.com/matheus3301/wamcp/internal/session"
	"github.com/matheus3301/wamcp/internal/wa"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyPaired is returned by Pair when the session has credentials.
	ErrAlreadyPaired = errors.New("session is already paired")
	// ErrNotPaired is returned by Logout when there is nothing to unlink.
	ErrNotPaired = errors.New("session is not paired")
)

// Pair links a new device to the session by QR code. show is called with
// every code WhatsApp issues until the phone scans one. It must not run
// while a daemon owns the session.
func Pair(ctx context.Context, p Params, show func(code string), logger *zap.Logger) error {
	if err := session.EnsureDir(p.SessionName, p.MediaDir); err != nil {
		return err
	}
	lk, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Release() }()

	adapter, err := offlineAdapter(ctx, p, logger)
	if err != nil {
		return err
	}
	if adapter.IsLoggedIn() {
		return ErrAlreadyPaired
	}
	defer adapter.Disconnect()

	events, err := adapter.Pair(ctx)
	if err != nil {
		return fmt.Errorf("start pairing: %w", err)
	}
	for evt := range events {
		switch evt.Type {
		case wa.PairQRCode:
			show(evt.QRCode)
		case wa.PairAuthenticated:
			logger.Info("device linked", zap.String("session", p.SessionName), zap.String("phone", adapter.PhoneNumber()))
			return nil
		default:
			return fmt.Errorf("pairing %s: %s", evt.Type, evt.Message)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("pairing ended without a result")
}

// Logout unlinks the session's device from the phone and deletes its
// credentials. Stored messages are kept.
func Logout(ctx context.Context, p Params, logger *zap.Logger) error {
	lk, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Release() }()

	adapter, err := offlineAdapter(ctx, p, logger)
	if err != nil {
		return err
	}
	if !adapter.IsLoggedIn() {
		return ErrNotPaired
	}
	defer adapter.Disconnect()
	if err := adapter.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	logger.Info("device unlinked", zap.String("session", p.SessionName))
	return nil
}

// offlineAdapter opens the session's device store without a running daemon
// around it. The caller holds the session lock.
func offlineAdapter(ctx context.Context, p Params, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(ctx, wa.Options{
		DeviceDBPath: session.DeviceDBPath(p.SessionName),
		MediaDir:     p.mediaDir(),
		DeviceName:   p.DeviceName,
	}, bus.New(), logger)
}
