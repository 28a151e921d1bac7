package progress

import (
	"context"
	"sync"
	"time"
)

const subscriberBuffer = 64

// Hub is an in-process Notifier.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*channel
	expiry   time.Duration
	now      func() time.Time
}

type channel struct {
	latest *Update
	subs   map[*subscriber]struct{}
	timer  *time.Timer
}

type subscriber struct {
	updates chan Update
	done    chan struct{}
}

// close must be called with the hub lock held and the subscriber still registered.
func (s *subscriber) close() {
	close(s.updates)
	close(s.done)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithExpiry sets how long terminal snapshots are retained.
func WithExpiry(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.expiry = d
		}
	}
}

// NewHub creates an in-memory notifier.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		channels: make(map[string]*channel),
		expiry:   DefaultExpiry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) get(id string) *channel {
	ch, ok := h.channels[id]
	if !ok {
		ch = &channel{subs: make(map[*subscriber]struct{})}
		h.channels[id] = ch
	}
	return ch
}

// Publish implements Notifier.
func (h *Hub) Publish(ctx context.Context, u Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := h.get(u.CorrelationID)
	if err := checkTransition(ch.latest, u.Stage); err != nil {
		return err
	}

	u.Progress = clampProgress(u.Progress)
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = h.now()
	}
	ch.latest = &u

	for sub := range ch.subs {
		offer(sub.updates, u)
		if u.Stage.Terminal() {
			sub.close()
			delete(ch.subs, sub)
		}
	}

	if u.Stage.Terminal() {
		h.scheduleExpiry(u.CorrelationID, ch)
	}
	return nil
}

// offer delivers u without blocking. A full buffer drops its oldest
// snapshot; subscribers only need the latest one.
func offer(updates chan Update, u Update) {
	select {
	case updates <- u:
		return
	default:
	}
	select {
	case <-updates:
	default:
	}
	select {
	case updates <- u:
	default:
	}
}

func (h *Hub) scheduleExpiry(id string, ch *channel) {
	if ch.timer != nil {
		ch.timer.Stop()
	}
	ch.timer = time.AfterFunc(h.expiry, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.channels[id] == ch && ch.latest != nil && ch.latest.Stage.Terminal() {
			delete(h.channels, id)
		}
	})
}

// Latest implements Notifier.
func (h *Hub) Latest(ctx context.Context, id string) (Update, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[id]
	if !ok || ch.latest == nil {
		return Update{}, false, nil
	}
	return *ch.latest, true, nil
}

// Subscribe implements Notifier.
func (h *Hub) Subscribe(ctx context.Context, id string) (<-chan Update, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{
		updates: make(chan Update, subscriberBuffer),
		done:    make(chan struct{}),
	}
	ch := h.get(id)

	if ch.latest != nil {
		sub.updates <- *ch.latest
		if ch.latest.Stage.Terminal() {
			close(sub.updates)
			return sub.updates, nil
		}
	}
	ch.subs[sub] = struct{}{}

	go func() {
		select {
		case <-sub.done:
		case <-ctx.Done():
			h.unsubscribe(id, ch, sub)
		}
	}()

	return sub.updates, nil
}

func (h *Hub) unsubscribe(id string, ch *channel, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := ch.subs[sub]; !ok {
		return
	}
	delete(ch.subs, sub)
	sub.close()

	// Drop channels that only existed for this subscriber.
	if ch.latest == nil && len(ch.subs) == 0 && h.channels[id] == ch {
		delete(h.channels, id)
	}
}

// Reset implements Notifier. Open subscribers stay attached and will see
// the next run's updates.
func (h *Hub) Reset(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[id]
	if !ok {
		return nil
	}
	if ch.timer != nil {
		ch.timer.Stop()
		ch.timer = nil
	}
	ch.latest = nil
	return nil
}
