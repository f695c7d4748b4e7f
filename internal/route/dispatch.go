package route

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/logging"
)

// Outcome describes one dispatch: what the classifier said, which handler ran,
// and what it returned.
type Outcome struct {
	Raw      string
	Label    Label
	Fallback bool
	Output   string
}

type Dispatcher struct {
	classifier Classifier
	registry   *Registry
	logger     *zap.Logger
}

type Option func(*Dispatcher)

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logging.OrNop(l) }
}

// NewDispatcher validates the registry up front so an unreachable fallback is
// a configuration error rather than a request-time failure.
func NewDispatcher(c Classifier, reg *Registry, opts ...Option) (*Dispatcher, error) {
	if c == nil {
		return nil, fmt.Errorf("route: classifier is nil")
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{classifier: c, registry: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch classifies request once and returns the selected handler's output.
func (d *Dispatcher) Dispatch(ctx context.Context, request string) (string, error) {
	out, err := d.Route(ctx, request)
	if err != nil {
		return "", err
	}
	return out.Output, nil
}

// Route is Dispatch with the routing decision exposed.
func (d *Dispatcher) Route(ctx context.Context, request string) (Outcome, error) {
	raw, err := d.classifier.Classify(ctx, request)
	if err != nil {
		d.logger.Warn("classification failed", zap.Error(err))
		return Outcome{}, &ClassificationError{Request: request, Err: err}
	}

	normalized := NormalizeLabel(raw)
	label, h, matched := d.registry.Resolve(normalized)
	d.logger.Info("request routed",
		zap.String("raw_label", raw),
		zap.String("label", string(label)),
		zap.Bool("fallback", !matched),
	)

	output, err := h.Handle(ctx, request)
	if err != nil {
		return Outcome{}, &HandlerError{Label: label, Err: err}
	}
	return Outcome{Raw: raw, Label: label, Fallback: !matched, Output: output}, nil
}

// NormalizeLabel trims whitespace and the decoration models commonly wrap a
// one-word answer in (quotes, backticks, a trailing period).
func NormalizeLabel(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		trimmed := strings.TrimSpace(strings.TrimSuffix(s, "."))
		trimmed = strings.Trim(trimmed, "'\"`")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
