// Package live fans committed workspace changes out to websocket clients.
package live

import (
	"context"
	"encoding/json"
	"foodflow/internal/core"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	defaultBuffer       = 16
	defaultWriteTimeout = 5 * time.Second
)

// Hub tracks websocket subscribers per user and implements core.ChangeSink.
type Hub struct {
	mu           sync.RWMutex
	subs         map[string]map[*subscriber]struct{}
	logger       *zap.Logger
	origins      []string
	buffer       int
	writeTimeout time.Duration
}

type subscriber struct {
	ch      chan []byte
	dropped chan struct{}
	once    sync.Once
}

func (s *subscriber) drop() {
	s.once.Do(func() { close(s.dropped) })
}

var _ core.ChangeSink = (*Hub)(nil)

// NewHub constructs a hub. Origins are passed to websocket.AcceptOptions;
// an empty list only accepts same-origin requests.
func NewHub(logger *zap.Logger, origins ...string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:         make(map[string]map[*subscriber]struct{}),
		logger:       logger,
		origins:      origins,
		buffer:       defaultBuffer,
		writeTimeout: defaultWriteTimeout,
	}
}

// Publish queues the event for every socket of event.UserID. Subscribers
// whose queue is full are disconnected.
func (h *Hub) Publish(_ context.Context, event core.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode live event", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[event.UserID] {
		select {
		case sub.ch <- data:
		default:
			h.logger.Warn("dropping slow live subscriber", zap.String("user_id", event.UserID))
			sub.drop()
		}
	}
}

// Subscribers returns the number of open sockets for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Serve upgrades the request and streams the user's events until the client
// disconnects, the request context ends or the subscriber is dropped.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		return err
	}
	sub := h.subscribe(userID)
	defer h.unsubscribe(userID, sub)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case <-sub.dropped:
			_ = conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			return nil
		case data := <-sub.ch:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Debug("live write failed", zap.String("user_id", userID), zap.Error(err))
				return nil
			}
		}
	}
}

func (h *Hub) subscribe(userID string) *subscriber {
	sub := &subscriber{ch: make(chan []byte, h.buffer), dropped: make(chan struct{})}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	count := len(h.subs[userID])
	h.mu.Unlock()
	h.logger.Debug("live subscriber connected", zap.String("user_id", userID), zap.Int("sockets", count))
	return sub
}

func (h *Hub) unsubscribe(userID string, sub *subscriber) {
	h.mu.Lock()
	delete(h.subs[userID], sub)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
	h.mu.Unlock()
}
