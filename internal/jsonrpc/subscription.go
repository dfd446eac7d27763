package jsonrpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Subscription is a live notification stream. Notifications closes when the
// subscription ends; Err reports why. A nil Err after close means a clean
// cancellation or client shutdown.
type Subscription struct {
	client      *Client
	method      string
	unsubMethod string
	params      []any

	ch chan json.RawMessage

	mu     sync.Mutex
	id     string
	err    error
	closed bool
}

// Notifications returns the stream of raw notification payloads.
func (s *Subscription) Notifications() <-chan json.RawMessage {
	return s.ch
}

// Err returns the terminal error after Notifications has been closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe cancels the subscription. The node-side release is best
// effort; the local stream always closes.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	id := s.id
	s.mu.Unlock()

	s.client.removeSub(s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.client.Call(ctx, s.unsubMethod, id); err != nil {
		s.client.logger.Debug("unsubscribe call failed", "method", s.unsubMethod, "err", err.Error())
	}

	s.fail(nil)
}

// deliver hands a notification to the consumer without ever blocking the
// read loop. A full buffer drops the notification; consumers that need
// completeness must additionally poll state.
func (s *Subscription) deliver(raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- raw:
	default:
		notificationsDropped.Inc()
		s.client.logger.Warn("subscription buffer full, dropping notification", "method", s.method)
	}
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}
