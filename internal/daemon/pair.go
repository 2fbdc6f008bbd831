package daemon

import (
	"context"
	"fmt"
	"io"

	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/wa"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// pairer is the part of the adapter the pairing flow needs.
type pairer interface {
	StartQRAuth(ctx context.Context) (<-chan wa.AuthEvent, error)
}

// pair runs the QR pairing flow, rendering each code to out. Once paired
// the provider's Connected event moves the machine on.
func pair(ctx context.Context, a pairer, machine *status.Machine, out io.Writer, logger *zap.Logger) {
	events, err := a.StartQRAuth(ctx)
	if err != nil {
		logger.Error("pairing failed to start", zap.Error(err))
		_ = machine.TransitionWithReason(status.Error, err.Error())
		return
	}

	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			logger.Info("scan the QR code with the phone to link this device")
			if err := renderQR(out, evt.QRCode); err != nil {
				logger.Warn("render QR code", zap.Error(err))
			}
		case wa.AuthEventAuthenticated:
			logger.Info("device paired")
		case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
			logger.Error("pairing failed", zap.String("reason", evt.Message))
			_ = machine.TransitionWithReason(status.Error, evt.Message)
		}
	}
}

func renderQR(w io.Writer, code string) error {
	q, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, q.ToSmallString(false))
	return err
}
