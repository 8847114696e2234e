// Package ratelimiter serializes outgoing chat calls and keeps a minimum
// gap between two calls to the same chat.
package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned for calls queued after or during Stop.
var ErrStopped = errors.New("rate limiter is stopped")

// Rates is the minimum gap per chat kind. Group chats have negative IDs.
type Rates struct {
	Private time.Duration
	Group   time.Duration
}

func DefaultRates() Rates {
	return Rates{Private: privateChatRate, Group: groupChatRate}
}

type request struct {
	ctx      context.Context
	chatID   int64
	call     func(ctx context.Context) error
	response chan error
}

type RateLimiter struct {
	rates    Rates
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(rates Rates, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		rates:    rates,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

// Do runs call once the chat's gap has passed and returns its error.
func (rl *RateLimiter) Do(ctx context.Context, chatID int64, call func(ctx context.Context) error) error {
	req := request{
		ctx:      ctx,
		chatID:   chatID,
		call:     call,
		response: make(chan error, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.ctx.Done():
		return ErrStopped
	}

	select {
	case err := <-req.response:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- ErrStopped
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if err := req.ctx.Err(); err != nil {
		req.response <- err
		return
	}

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[req.chatID]
	rl.mu.Unlock()

	if exists {
		delay := rl.delay(req.chatID, lastSent)

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting call",
				"chatID", req.chatID,
				"delay", delay,
				"queueLen", len(rl.queue))

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.ctx.Done():
				timer.Stop()
				req.response <- req.ctx.Err()
				return
			case <-rl.ctx.Done():
				timer.Stop()
				req.response <- ErrStopped
				return
			}
		}
	}

	err := req.call(req.ctx)

	rl.mu.Lock()
	rl.lastSent[req.chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- err
}

func (rl *RateLimiter) delay(chatID int64, lastSent time.Time) time.Duration {
	elapsed := time.Since(lastSent)

	return max(rl.rate(chatID)-elapsed, 0)
}

func (rl *RateLimiter) rate(chatID int64) time.Duration {
	if chatID < 0 {
		return rl.rates.Group
	}
	return rl.rates.Private
}
