package router

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppdesk/internal/media"
	"github.com/matheus3301/wppdesk/internal/notify"
	"github.com/matheus3301/wppdesk/internal/store"
	"go.uber.org/zap"
)

func (r *Router) process(ctx context.Context, sess Session, m Message) error {
	var group *store.Contact
	if m.IsGroup {
		gp, err := sess.GroupProfile(ctx, m.Chat)
		if err != nil {
			return fmt.Errorf("group profile %s: %w", m.Chat, err)
		}
		if group, err = r.resolveContact(ctx, m.Chat, gp, true); err != nil {
			return err
		}
	}

	party := m.Sender
	if m.FromMe || party == "" {
		party = m.Chat
	}
	prof, err := sess.Profile(ctx, party)
	if err != nil {
		return fmt.Errorf("profile %s: %w", party, err)
	}
	if prof.PushName == "" && !m.FromMe {
		prof.PushName = m.PushName
	}
	contact, err := r.resolveContact(ctx, party, prof, false)
	if err != nil {
		return err
	}

	unread := m.Unread
	if m.FromMe {
		unread = 0
	}
	ticket, err := r.store.FindOrCreateTicket(ctx, contact, sess.SessionID(), unread, group)
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}

	if _, err := r.persist(ctx, sess, m, ticket, contact); err != nil {
		return err
	}

	if ticket.QueueID == nil && ticket.UserID == nil && !m.IsGroup && !m.FromMe {
		r.routeQueue(ctx, sess, ticket, m.Body)
	}
	return nil
}

func (r *Router) resolveContact(ctx context.Context, number string, prof Profile, isGroup bool) (*store.Contact, error) {
	name := prof.Name
	if name == "" {
		name = prof.PushName
	}
	if name == "" {
		name = number
	}
	c, created, err := r.store.UpsertContact(ctx, &store.Contact{
		Name:          name,
		Number:        number,
		ProfilePicURL: prof.PictureURL,
		IsGroup:       isGroup,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve contact %s: %w", number, err)
	}
	action := notify.ActionUpdate
	if created {
		action = notify.ActionCreate
	}
	r.emit(ctx, notify.RoomContacts, notify.KindContact, action, c)
	return c, nil
}

// persist stores m on the ticket and refreshes the ticket preview.
func (r *Router) persist(ctx context.Context, sess Session, m Message, ticket *store.Ticket, contact *store.Contact) (*store.Message, error) {
	rec := &store.Message{
		ID:       m.ID,
		TicketID: ticket.ID,
		Body:     m.Body,
		FromMe:   m.FromMe,
		Read:     m.FromMe,
	}
	if !m.Timestamp.IsZero() {
		rec.CreatedAt = m.Timestamp.UnixMilli()
	}
	if !m.FromMe {
		rec.ContactID = &contact.ID
	}

	if m.QuotedID != "" {
		quoted, err := r.store.FindMessage(ctx, m.QuotedID)
		if err != nil {
			return nil, fmt.Errorf("quoted message %s: %w", m.QuotedID, err)
		}
		if quoted != nil {
			rec.QuotedMsgID = &quoted.ID
		}
	}

	if m.HasMedia {
		res := r.capture(ctx, sess, m)
		rec.MediaURL = res.FileName
		rec.MediaType = res.MediaType
		if rec.Body == "" {
			rec.Body = res.FileName
		}
	}

	return r.record(ctx, ticket, rec)
}

// capture downloads and writes the attachment. Failures degrade to a
// described but unwritten file.
func (r *Router) capture(ctx context.Context, sess Session, m Message) media.Result {
	data, err := sess.Download(ctx, m)
	if err != nil {
		r.logger.Error("failed to download media", zap.String("msg_id", m.ID), zap.Error(err))
		return r.media.Describe(m.MimeType, m.FileName)
	}
	res, err := r.media.Save(media.Attachment{Data: data, MimeType: m.MimeType, FileName: m.FileName})
	if err != nil {
		r.logger.Error("failed to store media", zap.String("msg_id", m.ID), zap.Error(err))
	}
	return res
}

func (r *Router) record(ctx context.Context, ticket *store.Ticket, rec *store.Message) (*store.Message, error) {
	saved, err := r.store.CreateMessage(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("store message %s: %w", rec.ID, err)
	}
	if err := r.store.UpdateLastMessage(ctx, ticket.ID, saved.Body); err != nil {
		return nil, fmt.Errorf("update ticket %d preview: %w", ticket.ID, err)
	}
	ticket.LastMessage = saved.Body

	room := notify.TicketRoom(ticket.ID)
	r.emit(ctx, room, notify.KindMessage, notify.ActionCreate, saved)
	r.emit(ctx, room, notify.KindTicket, notify.ActionUpdate, ticket)
	r.logger.Debug("message stored",
		zap.String("msg_id", saved.ID),
		zap.Int64("ticket_id", ticket.ID),
		zap.Bool("from_me", saved.FromMe))
	return saved, nil
}
