package wa

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/wppdesk/internal/router"
	"github.com/matheus3301/wppdesk/internal/status"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// Router consumes parsed message and acknowledgment events.
type Router interface {
	HandleMessage(ctx context.Context, sess router.Session, m router.Message)
	HandleAck(ctx context.Context, msgID string, ack int)
}

// EventHandler processes whatsmeow events. It drives the status machine
// and hands messages and receipts to the router, each on its own goroutine
// so a slow event never blocks the client's event loop.
type EventHandler struct {
	ctx     context.Context
	router  Router
	session router.Session
	machine *status.Machine
	unread  *UnreadTracker
	resolve JIDResolver
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewEventHandler creates a new event handler. Router calls run with ctx.
func NewEventHandler(ctx context.Context, r Router, sess router.Session, machine *status.Machine, resolve JIDResolver, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		ctx:     ctx,
		router:  r,
		session: sess,
		machine: machine,
		unread:  NewUnreadTracker(),
		resolve: resolve,
		logger:  logger,
	}
}

// Wait blocks until every dispatched router call has returned.
func (h *EventHandler) Wait() {
	h.wg.Wait()
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		current := h.machine.Current()
		if current == status.AuthRequired || current == status.Reconnecting {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Syncing)
	case *events.OfflineSyncCompleted:
		h.logger.Info("offline sync completed", zap.Int("count", evt.Count))
		if h.machine.Current() == status.Syncing {
			_ = h.machine.Transition(status.Ready)
		}
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
	case *events.KeepAliveTimeout:
		h.logger.Warn("keepalive timeout", zap.Int("errors", evt.ErrorCount))
		h.machine.Degrade(fmt.Sprintf("keepalive timeout (%d errors)", evt.ErrorCount))
	case *events.KeepAliveRestored:
		h.logger.Info("keepalive restored")
		h.machine.Restore()
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.TransitionWithReason(status.AuthRequired, evt.Reason.String())
	case *events.StreamReplaced:
		h.logger.Error("session opened elsewhere")
		_ = h.machine.TransitionWithReason(status.Error, "stream replaced")
	case *events.TemporaryBan:
		h.logger.Error("temporarily banned", zap.String("reason", evt.String()))
		_ = h.machine.TransitionWithReason(status.Error, evt.String())
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}

	m := ParseMessage(evt, h.resolve)
	m.Unread = h.unread.Observe(m.Chat, m.FromMe)
	h.dispatch(func() {
		h.router.HandleMessage(h.ctx, h.session, m)
	})
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	if evt.Type == types.ReceiptTypeReadSelf {
		resolve := h.resolve
		if resolve == nil {
			resolve = func(j types.JID) types.JID { return j }
		}
		chat := userAddress(canonical(evt.Chat, types.EmptyJID, resolve))
		if n := h.unread.Reset(chat); n > 0 {
			h.logger.Debug("chat read on another device", zap.String("chat", chat), zap.Int("cleared", n))
		}
	}

	ack, ok := AckLevel(evt.Type)
	if !ok {
		return
	}
	for _, id := range evt.MessageIDs {
		h.dispatch(func() {
			h.router.HandleAck(h.ctx, id, ack)
		})
	}
}

func (h *EventHandler) dispatch(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// AckLevel maps a receipt type onto the acknowledgment scale.
func AckLevel(t types.ReceiptType) (int, bool) {
	switch t {
	case types.ReceiptTypeServerError:
		return router.AckError, true
	case types.ReceiptTypeSender:
		return router.AckServer, true
	case types.ReceiptTypeDelivered:
		return router.AckDevice, true
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		return router.AckRead, true
	case types.ReceiptTypePlayed, types.ReceiptTypePlayedSelf:
		return router.AckPlayed, true
	}
	return 0, false
}
