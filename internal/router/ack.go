package router

import (
	"context"
	"time"

	"github.com/matheus3301/wppdesk/internal/notify"
	"go.uber.org/zap"
)

// Acknowledgment levels.
const (
	AckError   = -1
	AckPending = 0
	AckServer  = 1
	AckDevice  = 2
	AckRead    = 3
	AckPlayed  = 4
)

// HandleAck applies a delivery acknowledgment to a stored message. It waits
// AckDelay first so an acknowledgment racing its message's persistence still
// lands. Unknown messages are ignored. Failures are logged.
func (r *Router) HandleAck(ctx context.Context, msgID string, ack int) {
	defer r.contain("ack", msgID)

	if r.cfg.AckDelay > 0 {
		t := time.NewTimer(r.cfg.AckDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	msg, err := r.store.FindMessage(ctx, msgID)
	if err != nil {
		r.logger.Error("failed to handle ack", zap.String("msg_id", msgID), zap.Error(err))
		return
	}
	if msg == nil {
		r.logger.Debug("ack for unknown message", zap.String("msg_id", msgID), zap.Int("ack", ack))
		return
	}

	changed, err := r.store.ApplyMessageAck(ctx, msgID, ack)
	if err != nil {
		r.logger.Error("failed to handle ack", zap.String("msg_id", msgID), zap.Error(err))
		return
	}
	if !changed {
		r.logger.Debug("ack refused", zap.String("msg_id", msgID), zap.Int("ack", ack), zap.Int("stored", msg.Ack))
		return
	}
	msg.Ack = ack
	r.emit(ctx, notify.TicketRoom(msg.TicketID), notify.KindMessage, notify.ActionUpdate, msg)
	r.logger.Debug("ack applied", zap.String("msg_id", msgID), zap.Int("ack", ack))
}
