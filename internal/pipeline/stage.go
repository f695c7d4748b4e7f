package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/danshapiro/courier/internal/llm"
)

// Entry is one state value handed to a stage.
type Entry struct {
	Key   string
	Value string
}

// Input is what a stage sees: the run's initial input and the values of the
// keys it declared in Reads, in declaration order.
type Input struct {
	Session Session
	Text    string
	Reads   []Entry
}

// Lookup returns the value of a declared read key.
func (in Input) Lookup(key string) (string, bool) {
	for _, e := range in.Reads {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

type Stage interface {
	Name() string
	Reads() []string
	OutputKey() string
	Run(ctx context.Context, in Input) (string, error)
}

// LLMStage renders Instruction with the values of ReadKeys and asks the
// oracle to respond to the run's input. Occurrences of {key} in Instruction
// are replaced by the key's value; read keys without a placeholder are
// appended as labelled sections.
type LLMStage struct {
	StageName   string
	Instruction string
	ReadKeys    []string
	Output      string

	Completer llm.Completer
	Sampling  llm.Sampling

	// Normalize, when set, validates the raw oracle text and returns the
	// value written to state. An error fails the stage.
	Normalize func(string) (string, error)
}

func (s *LLMStage) Name() string      { return s.StageName }
func (s *LLMStage) Reads() []string   { return append([]string(nil), s.ReadKeys...) }
func (s *LLMStage) OutputKey() string { return s.Output }

func (s *LLMStage) Run(ctx context.Context, in Input) (string, error) {
	text, err := llm.CompleteText(ctx, s.Completer, s.Sampling.Request(
		llm.System(RenderInstruction(s.Instruction, in.Reads)),
		llm.User(in.Text),
	))
	if err != nil {
		return "", err
	}
	if s.Normalize == nil {
		return text, nil
	}
	return s.Normalize(text)
}

// RenderInstruction substitutes {key} placeholders with their values in a
// single pass, so inserted values are never rescanned. Reads without a
// placeholder are appended as "key:\nvalue" blocks.
func RenderInstruction(instruction string, reads []Entry) string {
	var pairs []string
	var appendix []Entry
	for _, e := range reads {
		placeholder := "{" + e.Key + "}"
		if strings.Contains(instruction, placeholder) {
			pairs = append(pairs, placeholder, e.Value)
			continue
		}
		appendix = append(appendix, e)
	}
	out := instruction
	if len(pairs) > 0 {
		out = strings.NewReplacer(pairs...).Replace(instruction)
	}
	if len(appendix) == 0 {
		return out
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(out, "\n"))
	for _, e := range appendix {
		fmt.Fprintf(&b, "\n\n%s:\n%s", e.Key, e.Value)
	}
	return b.String()
}
