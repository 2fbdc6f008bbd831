// Package router turns provider message and receipt events into ticket
// records. It filters and deduplicates events, resolves the contact and
// ticket, stores the message with any media, routes unassigned tickets to a
// queue and applies delivery acknowledgments.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/debounce"
	"github.com/matheus3301/wppdesk/internal/media"
	"github.com/matheus3301/wppdesk/internal/notify"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/store"
	"go.uber.org/zap"
)

// Message is a provider message event in provider-neutral form.
type Message struct {
	ID string
	// Chat is the conversation address: the peer's number for direct chats,
	// the group id for groups.
	Chat string
	// Sender is the individual party: the author inside a group, the peer in
	// a direct chat. Empty means Chat.
	Sender      string
	FromMe      bool
	IsGroup     bool
	IsBroadcast bool
	Type        string
	Body        string
	HasMedia    bool
	MimeType    string
	FileName    string
	QuotedID    string
	PushName    string
	Timestamp   time.Time
	// Unread is the chat's unread counter when the event arrived.
	Unread int
	// Raw is the provider payload, used by Session to download media.
	Raw any
}

// Profile is what the provider knows about a contact or group.
type Profile struct {
	Name       string
	PushName   string
	PictureURL string
}

// Session is the active provider session.
type Session interface {
	outbox.TextSender
	// SessionID is the store id of the session record.
	SessionID() int64
	Download(ctx context.Context, m Message) ([]byte, error)
	Profile(ctx context.Context, number string) (Profile, error)
	GroupProfile(ctx context.Context, groupID string) (Profile, error)
}

// ContactResolver upserts contacts by number.
type ContactResolver interface {
	UpsertContact(ctx context.Context, c *store.Contact) (*store.Contact, bool, error)
}

// TicketResolver finds or creates the ticket for a contact.
type TicketResolver interface {
	FindOrCreateTicket(ctx context.Context, contact *store.Contact, sessionID int64, unread int, group *store.Contact) (*store.Ticket, error)
	GetTicket(ctx context.Context, id int64) (*store.Ticket, error)
	SetTicketQueue(ctx context.Context, ticketID, queueID int64) (*store.Ticket, error)
	UpdateLastMessage(ctx context.Context, ticketID int64, body string) error
}

// MessageStore persists messages keyed by provider id.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *store.Message) (*store.Message, error)
	FindMessage(ctx context.Context, id string) (*store.Message, error)
	ApplyMessageAck(ctx context.Context, id string, ack int) (bool, error)
}

// QueueLister lists the session's queues and greeting.
type QueueLister interface {
	ListQueues(ctx context.Context, sessionID int64) ([]store.Queue, error)
	GetSession(ctx context.Context, id int64) (*store.Session, error)
}

// Store is every persistence operation the router needs.
type Store interface {
	ContactResolver
	TicketResolver
	MessageStore
	QueueLister
}

// Replier sends automated replies.
type Replier interface {
	Send(ctx context.Context, via outbox.TextSender, to, text string) (outbox.Sent, error)
}

// Config holds router timings.
type Config struct {
	// MenuDebounce is how long a ticket must stay quiet before the queue
	// menu is sent.
	MenuDebounce time.Duration
	// AckDelay is how long an acknowledgment waits before looking up its
	// message.
	AckDelay time.Duration
}

// Router handles message and acknowledgment events for one session.
type Router struct {
	store   Store
	media   *media.Store
	notify  notify.Emitter
	replier Replier
	cfg     Config
	logger  *zap.Logger

	menus *debounce.Debouncer[int64]

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Router.
func New(st Store, m *media.Store, n notify.Emitter, r Replier, cfg Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		store:    st,
		media:    m,
		notify:   n,
		replier:  r,
		cfg:      cfg,
		logger:   logger,
		menus:    debounce.New[int64](),
		inflight: make(map[string]struct{}),
	}
}

// Stop cancels pending menus.
func (r *Router) Stop() {
	if n := r.menus.Len(); n > 0 {
		r.logger.Info("cancelling pending menus", zap.Int("count", n))
	}
	r.menus.Stop()
}

// PendingMenu reports whether a menu is scheduled for the ticket.
func (r *Router) PendingMenu(ticketID int64) bool {
	return r.menus.Pending(ticketID)
}

// HandleMessage processes one message event. Failures are logged and the
// event is dropped.
func (r *Router) HandleMessage(ctx context.Context, sess Session, m Message) {
	defer r.contain("message", m.ID)

	if reason := Reject(m); reason != "" {
		r.logger.Debug("message skipped", zap.String("msg_id", m.ID), zap.String("reason", reason))
		return
	}
	if !r.claim(m.ID) {
		r.logger.Debug("message skipped", zap.String("msg_id", m.ID), zap.String("reason", "in flight"))
		return
	}
	defer r.release(m.ID)

	existing, err := r.store.FindMessage(ctx, m.ID)
	if err != nil {
		r.logger.Error("failed to handle message", zap.String("msg_id", m.ID), zap.Error(err))
		return
	}
	if existing != nil {
		r.logger.Debug("message skipped", zap.String("msg_id", m.ID), zap.String("reason", "already stored"))
		return
	}

	if err := r.process(ctx, sess, m); err != nil {
		r.logger.Error("failed to handle message", zap.String("msg_id", m.ID), zap.Error(err))
	}
}

func (r *Router) claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[id]; ok {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Router) release(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

// contain turns a handler panic into a logged error.
func (r *Router) contain(handler, msgID string) {
	if v := recover(); v != nil {
		r.logger.Error("handler panicked",
			zap.String("handler", handler),
			zap.String("msg_id", msgID),
			zap.Error(fmt.Errorf("panic: %v", v)))
	}
}

func (r *Router) emit(ctx context.Context, room, kind, action string, payload any) {
	if r.notify == nil {
		return
	}
	// Delivery problems are logged by the emitter and never affect routing.
	_ = r.notify.Emit(ctx, notify.Notification{Room: room, Kind: kind, Action: action, Payload: payload})
}
