package wa

import "sync"

// UnreadTracker counts inbound messages per chat since the operator side
// last wrote or read.
type UnreadTracker struct {
	mu    sync.Mutex
	count map[string]int
}

// NewUnreadTracker returns an empty tracker.
func NewUnreadTracker() *UnreadTracker {
	return &UnreadTracker{count: make(map[string]int)}
}

// Observe records a message in chat and returns the chat's unread count.
// Our own messages reset the count.
func (u *UnreadTracker) Observe(chat string, fromMe bool) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if fromMe {
		delete(u.count, chat)
		return 0
	}
	u.count[chat]++
	return u.count[chat]
}

// Reset clears chat's unread count and returns the count it cleared.
func (u *UnreadTracker) Reset(chat string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := u.count[chat]
	delete(u.count, chat)
	return n
}
