package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TextSender is the interface for sending text messages via WhatsApp.
type TextSender interface {
	SendText(ctx context.Context, to string, text string) (Sent, error)
}

// Sent identifies a message accepted by the server.
type Sent struct {
	ID        string
	Timestamp time.Time
}

// Sender throttles automated replies so a burst of tickets cannot flood the
// provider with menus and confirmations.
type Sender struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSender creates a sender allowing perSecond replies with the given burst.
// A non-positive rate disables throttling.
func NewSender(perSecond float64, burst int, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Sender{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Send waits for a slot and sends text to the recipient through via.
func (s *Sender) Send(ctx context.Context, via TextSender, to, text string) (Sent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Sent{}, fmt.Errorf("outbox wait: %w", err)
	}

	sent, err := via.SendText(ctx, to, text)
	if err != nil {
		s.logger.Error("failed to send message", zap.String("to", to), zap.Error(err))
		return Sent{}, fmt.Errorf("send to %s: %w", to, err)
	}

	s.logger.Info("message sent", zap.String("to", to), zap.String("server_msg_id", sent.ID))
	return sent, nil
}
