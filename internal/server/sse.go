package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/danshapiro/courier/internal/pipeline"
)

// Broadcaster fans out one run's pipeline events to SSE clients. Late
// subscribers get the full history first. Thread-safe.
type Broadcaster struct {
	mu      sync.Mutex
	history []pipeline.Event
	clients map[uint64]chan pipeline.Event
	nextID  uint64
	closed  bool
	doneCh  chan struct{} // closed only by Close, not by slow-client drops
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[uint64]chan pipeline.Event),
		doneCh:  make(chan struct{}),
	}
}

// Send records ev and delivers it to every subscriber. A subscriber whose
// buffer is full is dropped rather than blocking the run.
func (b *Broadcaster) Send(ev pipeline.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history = append(b.history, ev)
	for id, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(b.clients, id)
		}
	}
}

// Subscribe returns an event channel that replays history and then carries
// live events, a channel closed when the run ends, and an unsubscribe func.
func (b *Broadcaster) Subscribe() (<-chan pipeline.Event, <-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan pipeline.Event, len(b.history)+64)
	id := b.nextID
	b.nextID++

	for _, ev := range b.history {
		ch <- ev
	}

	if b.closed {
		close(ch)
		return ch, b.doneCh, func() {}
	}

	b.clients[id] = ch
	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.clients[id]; ok {
			delete(b.clients, id)
			close(ch)
		}
	}
	return ch, b.doneCh, unsub
}

// Close signals that the run produced its last event.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.doneCh)
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

func (b *Broadcaster) History() []pipeline.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]pipeline.Event, len(b.history))
	copy(out, b.history)
	return out
}

func payload(ev pipeline.Event) EventPayload {
	return EventPayload{
		ID:     ev.ID,
		Kind:   string(ev.Kind),
		Author: ev.Author,
		Text:   ev.Text(),
		Time:   ev.Time,
	}
}

// WriteSSE streams a run's events as Server-Sent Events. The event name is
// the event kind; a terminal "done" event follows when the run has ended.
func WriteSSE(w http.ResponseWriter, r *http.Request, b *Broadcaster) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, doneCh, unsub := b.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				select {
				case <-doneCh:
					fmt.Fprintf(w, "event: done\ndata: {}\n\n")
					flusher.Flush()
				default:
				}
				return
			}
			data, err := json.Marshal(payload(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
