package store

// Ticket statuses.
const (
	StatusPending = "pending"
	StatusOpen    = "open"
	StatusClosed  = "closed"
)

// Session is the provider session record. Its greeting opens the queue menu.
type Session struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	GreetingMessage string `json:"greetingMessage"`
}

// Queue is an operator routing bucket. Position is the 1-based menu ordinal.
type Queue struct {
	ID              int64  `json:"id"`
	SessionID       int64  `json:"sessionId"`
	Name            string `json:"name"`
	GreetingMessage string `json:"greetingMessage"`
	Position        int    `json:"position"`
}

// Contact is a person or group known to the provider session.
type Contact struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Number        string `json:"number"`
	ProfilePicURL string `json:"profilePicUrl"`
	IsGroup       bool   `json:"isGroup"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// Ticket is a conversation thread between one contact and the operators.
type Ticket struct {
	ID             int64    `json:"id"`
	ContactID      int64    `json:"contactId"`
	SessionID      int64    `json:"sessionId"`
	QueueID        *int64   `json:"queueId"`
	UserID         *int64   `json:"userId"`
	Status         string   `json:"status"`
	LastMessage    string   `json:"lastMessage"`
	UnreadMessages int      `json:"unreadMessages"`
	IsGroup        bool     `json:"isGroup"`
	CreatedAt      int64    `json:"createdAt"`
	UpdatedAt      int64    `json:"updatedAt"`
	Contact        *Contact `json:"contact,omitempty"`
	Queue          *Queue   `json:"queue,omitempty"`
}

// Message is keyed by the provider message identifier.
type Message struct {
	ID          string   `json:"id"`
	TicketID    int64    `json:"ticketId"`
	ContactID   *int64   `json:"contactId"`
	Body        string   `json:"body"`
	FromMe      bool     `json:"fromMe"`
	Read        bool     `json:"read"`
	MediaURL    string   `json:"mediaUrl"`
	MediaType   string   `json:"mediaType"`
	QuotedMsgID *string  `json:"quotedMsgId"`
	Ack         int      `json:"ack"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
	Contact     *Contact `json:"contact,omitempty"`
	QuotedMsg   *Message `json:"quotedMsg,omitempty"`
}
