package route

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/llm"
)

const (
	LabelBooker  Label = "booker"
	LabelInfo    Label = "info"
	LabelUnclear Label = "unclear"
)

const CoordinatorInstruction = `Analyze the user's request and determine which specialist handler should process it.
- If the request is related to booking flights or hotels, output 'booker'.
- For all other general information questions, output 'info'.
- If the request is unclear or doesn't fit either category, output 'unclear'.`

func BookingHandler(_ context.Context, request string) (string, error) {
	return fmt.Sprintf("Booking Handler processed request: '%s'. Result: Simulated booking action.", request), nil
}

func InfoHandler(_ context.Context, request string) (string, error) {
	return fmt.Sprintf("Info Handler processed request: '%s'. Result: Simulated information retrieval.", request), nil
}

func UnclearHandler(_ context.Context, request string) (string, error) {
	return fmt.Sprintf("Coordinator could not delegate request: '%s'. Please clarify.", request), nil
}

// StandardHandlers names the coordinator handlers for declarative routers.
func StandardHandlers() map[string]Handler {
	return map[string]Handler{
		string(LabelBooker):  HandlerFunc(BookingHandler),
		string(LabelInfo):    HandlerFunc(InfoHandler),
		string(LabelUnclear): HandlerFunc(UnclearHandler),
	}
}

// CoordinatorRegistry wires the booking/info handlers with unclear as fallback.
func CoordinatorRegistry() *Registry {
	return NewRegistry(LabelUnclear).
		MustRegister(LabelBooker, HandlerFunc(BookingHandler)).
		MustRegister(LabelInfo, HandlerFunc(InfoHandler)).
		MustRegister(LabelUnclear, HandlerFunc(UnclearHandler))
}

// NewCoordinator builds the travel-desk router: an LLM classifier over the
// coordinator labels in front of CoordinatorRegistry.
func NewCoordinator(c llm.Completer, sampling llm.Sampling, logger *zap.Logger) (*Dispatcher, error) {
	reg := CoordinatorRegistry()
	classifier := &LLMClassifier{
		Completer:   c,
		Sampling:    sampling,
		Instruction: CoordinatorInstruction,
		Labels:      reg.Labels(),
	}
	return NewDispatcher(classifier, reg, WithLogger(logger))
}
