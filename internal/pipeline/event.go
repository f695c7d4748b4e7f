package pipeline

import (
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventPartial EventKind = "partial"
	EventFinal   EventKind = "final"
)

// Part is one ordered text fragment of an event. Empty fragments are allowed
// and ignored by Text.
type Part struct {
	Text string
}

type Event struct {
	ID     string
	Kind   EventKind
	Author string
	Parts  []Part
	Time   time.Time
}

// Partial builds an intermediate event carrying a single fragment.
func Partial(author, text string) Event {
	return newEvent(EventPartial, author, []Part{{Text: text}})
}

// Final builds the terminal event. A direct text result is the one-fragment case.
func Final(author string, fragments ...string) Event {
	parts := make([]Part, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, Part{Text: f})
	}
	return newEvent(EventFinal, author, parts)
}

func newEvent(kind EventKind, author string, parts []Part) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Author: author,
		Parts:  parts,
		Time:   time.Now().UTC(),
	}
}

func (e Event) IsFinal() bool { return e.Kind == EventFinal }

// Text joins the non-empty fragments in order with no separator.
func (e Event) Text() string {
	var b strings.Builder
	for _, p := range e.Parts {
		if p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Reduce consumes events in order and returns the text of the first final
// event. Partial events are passed to observe, when non-nil, and never
// returned. Iteration stops right after the final event. A sequence that
// ends without a final event yields "" and no error.
func Reduce(events iter.Seq2[Event, error], observe func(Event)) (string, error) {
	if events == nil {
		return "", nil
	}
	for ev, err := range events {
		if err != nil {
			return "", err
		}
		if ev.IsFinal() {
			return ev.Text(), nil
		}
		if observe != nil {
			observe(ev)
		}
	}
	return "", nil
}

// Sequence adapts a fixed list of events to the iterator form Reduce takes.
func Sequence(events ...Event) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}
