package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// OutboundEvent is one bot reply as seen by event stream subscribers.
type OutboundEvent struct {
	Recipient string          `json:"recipient"`
	Text      string          `json:"text"`
	Options   []domain.Option `json:"options,omitempty"`
}

// StreamManager fans outbound messages out to server-sent event subscribers, keyed by recipient.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates a manager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for recipient. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(recipient string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[recipient]; !ok {
		sm.subscribers[recipient] = make(map[chan<- string]struct{})
	}
	sm.subscribers[recipient][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[recipient]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, recipient)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of recipient. Slow clients lose messages.
func (sm *StreamManager) Broadcast(recipient, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[recipient] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("event stream buffer full, dropping message", "recipient", recipient)
		}
	}
}

// Subscribers returns the number of open streams of recipient.
func (sm *StreamManager) Subscribers(recipient string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[recipient])
}

// Tee wraps a Messenger so that every delivered message is also broadcast.
func (sm *StreamManager) Tee(next ports.Messenger) ports.Messenger {
	return &teeMessenger{next: next, streams: sm}
}

type teeMessenger struct {
	next    ports.Messenger
	streams *StreamManager
}

func (t *teeMessenger) SendText(ctx context.Context, recipient, text string) error {
	if err := t.next.SendText(ctx, recipient, text); err != nil {
		return err
	}
	t.publish(OutboundEvent{Recipient: recipient, Text: text})
	return nil
}

func (t *teeMessenger) SendQuickReplies(ctx context.Context, recipient, text string, options []domain.Option) error {
	if err := t.next.SendQuickReplies(ctx, recipient, text, options); err != nil {
		return err
	}
	t.publish(OutboundEvent{Recipient: recipient, Text: text, Options: options})
	return nil
}

func (t *teeMessenger) publish(ev OutboundEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	t.streams.Broadcast(ev.Recipient, string(data))
}

// subscribeEvents handles GET /v1/events?recipient=... as a server-sent event stream.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}
	recipient := r.URL.Query().Get("recipient")

	ch, cancel := s.streams.Subscribe(recipient)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("event stream opened", "recipient", recipient)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("event stream closed", "recipient", recipient)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
