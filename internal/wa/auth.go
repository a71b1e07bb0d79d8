package wa

import (
	"context"

	"github.com/matheus3301/wamcp/internal/bus"
)

// PairEventType enumerates pairing event types.
type PairEventType string

const (
	PairQRCode        PairEventType = "qr_code"
	PairAuthenticated PairEventType = "authenticated"
	PairFailed        PairEventType = "failed"
	PairTimeout       PairEventType = "timeout"
)

// PairEvent is one step of the QR pairing flow.
type PairEvent struct {
	Type    PairEventType
	QRCode  string
	Message string
}

// Pair runs the QR pairing flow. Every step is sent on the returned channel
// and mirrored on the bus; the channel closes when pairing ends.
func (a *Adapter) Pair(ctx context.Context) (<-chan PairEvent, error) {
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan PairEvent, 10)
	go func() {
		defer close(out)

		// GetQRChannel must come before Connect.
		if err := a.Connect(); err != nil {
			a.pairStep(out, PairEvent{Type: PairFailed, Message: err.Error()})
			return
		}

		for item := range qrChan {
			switch {
			case item.Event == "code":
				a.pairStep(out, PairEvent{Type: PairQRCode, QRCode: item.Code})
			case item.Event == "success":
				a.pairStep(out, PairEvent{Type: PairAuthenticated, Message: "authenticated"})
				return
			case item.Event == "timeout":
				a.pairStep(out, PairEvent{Type: PairTimeout, Message: "QR code timeout"})
				return
			case item.Error != nil:
				a.pairStep(out, PairEvent{Type: PairFailed, Message: item.Error.Error()})
				return
			}
		}
	}()
	return out, nil
}

func (a *Adapter) pairStep(out chan<- PairEvent, evt PairEvent) {
	out <- evt
	switch evt.Type {
	case PairQRCode:
		a.bus.Emit(bus.KindQRGenerated, evt.QRCode)
	case PairAuthenticated:
		a.bus.Emit(bus.KindAuthenticated, nil)
	default:
		a.bus.Emit(bus.KindAuthFailed, evt.Message)
	}
}
