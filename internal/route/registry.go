package route

import (
	"context"
	"fmt"
	"strings"
)

// Label is one of the caller-declared classification outcomes.
type Label string

type Handler interface {
	Handle(ctx context.Context, request string) (string, error)
}

type HandlerFunc func(ctx context.Context, request string) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, request string) (string, error) {
	return f(ctx, request)
}

type registration struct {
	label   Label
	handler Handler
}

// Registry maps labels to handlers in declaration order and names the label
// whose handler receives every unmatched classification.
type Registry struct {
	entries  []registration
	fallback Label
}

func NewRegistry(fallback Label) *Registry {
	return &Registry{fallback: Label(strings.TrimSpace(string(fallback)))}
}

// Register appends a handler. Labels are compared case-insensitively, so two
// labels differing only in case are rejected.
func (r *Registry) Register(label Label, h Handler) error {
	name := strings.TrimSpace(string(label))
	if name == "" {
		return fmt.Errorf("route: empty label")
	}
	if h == nil {
		return fmt.Errorf("route: nil handler for label %q", name)
	}
	for _, e := range r.entries {
		if strings.EqualFold(string(e.label), name) {
			return fmt.Errorf("route: label %q already registered as %q", name, e.label)
		}
	}
	r.entries = append(r.entries, registration{label: Label(name), handler: h})
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(label Label, h Handler) *Registry {
	if err := r.Register(label, h); err != nil {
		panic(err)
	}
	return r
}

// Labels returns the registered labels in declaration order.
func (r *Registry) Labels() []Label {
	out := make([]Label, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.label)
	}
	return out
}

func (r *Registry) Fallback() Label { return r.fallback }

// Validate checks that the fallback label names a registered handler.
func (r *Registry) Validate() error {
	if r == nil {
		return fmt.Errorf("route: registry is nil")
	}
	if r.fallback == "" {
		return fmt.Errorf("route: fallback label is required")
	}
	if _, ok := r.lookup(string(r.fallback)); !ok {
		return fmt.Errorf("route: fallback label %q has no registered handler", r.fallback)
	}
	return nil
}

// Resolve returns the first registration matching label, or the fallback
// registration with matched=false.
func (r *Registry) Resolve(label string) (resolved Label, h Handler, matched bool) {
	if e, ok := r.lookup(label); ok {
		return e.label, e.handler, true
	}
	e, _ := r.lookup(string(r.fallback))
	return e.label, e.handler, false
}

func (r *Registry) lookup(label string) (registration, bool) {
	if label == "" {
		return registration{}, false
	}
	for _, e := range r.entries {
		if strings.EqualFold(string(e.label), label) {
			return e, true
		}
	}
	return registration{}, false
}
