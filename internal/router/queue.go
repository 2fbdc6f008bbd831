package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wppdesk/internal/notify"
	"github.com/matheus3301/wppdesk/internal/store"
	"go.uber.org/zap"
)

// replyTimeout bounds a menu send that runs after its triggering event.
const replyTimeout = 30 * time.Second

// Selector maps the first character of body onto a 0-based index into n
// queues. "1" picks the first queue.
func Selector(body string, n int) (int, bool) {
	if body == "" {
		return 0, false
	}
	c := body[0]
	if c < '1' || c > '9' {
		return 0, false
	}
	idx := int(c - '1')
	if idx >= n {
		return 0, false
	}
	return idx, true
}

// Menu renders the queue prompt.
func Menu(greeting string, queues []store.Queue) string {
	var b strings.Builder
	b.WriteString(Marker)
	b.WriteString(greeting)
	b.WriteString("\n")
	for i, q := range queues {
		fmt.Fprintf(&b, "*%d* - %s\n", i+1, q.Name)
	}
	return b.String()
}

// Confirmation renders the reply to a valid selection.
func Confirmation(q store.Queue) string {
	return Marker + q.GreetingMessage
}

func (r *Router) routeQueue(ctx context.Context, sess Session, ticket *store.Ticket, body string) {
	queues, err := r.store.ListQueues(ctx, sess.SessionID())
	if err != nil {
		r.logger.Error("failed to list queues", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	switch len(queues) {
	case 0:
		return
	case 1:
		_, _ = r.assign(ctx, ticket, queues[0])
		return
	}

	if idx, ok := Selector(body, len(queues)); ok {
		r.menus.Cancel(ticket.ID)
		assigned, err := r.assign(ctx, ticket, queues[idx])
		if err != nil {
			return
		}
		r.reply(ctx, sess, assigned, Confirmation(queues[idx]))
		return
	}

	bg := context.WithoutCancel(ctx)
	r.menus.Schedule(ticket.ID, r.cfg.MenuDebounce, func() {
		r.sendMenu(bg, sess, ticket.ID)
	})
	r.logger.Debug("menu scheduled", zap.Int64("ticket_id", ticket.ID), zap.Duration("delay", r.cfg.MenuDebounce))
}

func (r *Router) assign(ctx context.Context, ticket *store.Ticket, q store.Queue) (*store.Ticket, error) {
	updated, err := r.store.SetTicketQueue(ctx, ticket.ID, q.ID)
	if err != nil {
		r.logger.Error("failed to assign queue",
			zap.Int64("ticket_id", ticket.ID), zap.Int64("queue_id", q.ID), zap.Error(err))
		return nil, err
	}
	r.emit(ctx, notify.TicketRoom(ticket.ID), notify.KindTicket, notify.ActionUpdate, updated)
	r.logger.Info("ticket assigned",
		zap.Int64("ticket_id", ticket.ID), zap.Int64("queue_id", q.ID), zap.String("queue", q.Name))
	return updated, nil
}

// sendMenu runs when a ticket's menu timer fires.
func (r *Router) sendMenu(ctx context.Context, sess Session, ticketID int64) {
	defer r.contain("menu", "")
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	ticket, err := r.store.GetTicket(ctx, ticketID)
	if err != nil {
		r.logger.Error("failed to reload ticket", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return
	}
	if ticket == nil || ticket.QueueID != nil || ticket.UserID != nil {
		r.logger.Debug("menu dropped", zap.Int64("ticket_id", ticketID))
		return
	}

	queues, err := r.store.ListQueues(ctx, sess.SessionID())
	if err != nil {
		r.logger.Error("failed to list queues", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return
	}
	if len(queues) == 0 {
		return
	}
	s, err := r.store.GetSession(ctx, sess.SessionID())
	if err != nil {
		r.logger.Error("failed to load session", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return
	}
	greeting := ""
	if s != nil {
		greeting = s.GreetingMessage
	}
	r.reply(ctx, sess, ticket, Menu(greeting, queues))
}

// reply sends text to the ticket's contact and stores the echo.
func (r *Router) reply(ctx context.Context, sess Session, ticket *store.Ticket, text string) {
	if ticket.Contact == nil {
		r.logger.Error("ticket has no contact", zap.Int64("ticket_id", ticket.ID))
		return
	}
	sent, err := r.replier.Send(ctx, sess, ticket.Contact.Number, text)
	if err != nil {
		r.logger.Error("failed to send reply", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	rec := &store.Message{
		ID:       sent.ID,
		TicketID: ticket.ID,
		Body:     text,
		FromMe:   true,
		Read:     true,
		Ack:      AckServer,
	}
	if !sent.Timestamp.IsZero() {
		rec.CreatedAt = sent.Timestamp.UnixMilli()
	}
	if _, err := r.record(ctx, ticket, rec); err != nil {
		r.logger.Error("failed to store reply", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
}
