package route

import (
	"context"
	"fmt"
	"strings"

	"github.com/danshapiro/courier/internal/llm"
)

type Classifier interface {
	Classify(ctx context.Context, request string) (string, error)
}

type ClassifierFunc func(ctx context.Context, request string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, request string) (string, error) {
	return f(ctx, request)
}

// LLMClassifier asks the oracle for exactly one of Labels and returns the raw
// reply. Matching and fallback belong to the Dispatcher.
type LLMClassifier struct {
	Completer   llm.Completer
	Sampling    llm.Sampling
	Instruction string
	Labels      []Label
}

func (c *LLMClassifier) Classify(ctx context.Context, request string) (string, error) {
	req := c.Sampling.Request(
		llm.System(c.systemPrompt()),
		llm.User(request),
	)
	return llm.CompleteText(ctx, c.Completer, req)
}

func (c *LLMClassifier) systemPrompt() string {
	quoted := make([]string, 0, len(c.Labels))
	for _, l := range c.Labels {
		quoted = append(quoted, fmt.Sprintf("'%s'", l))
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Instruction))
	if len(quoted) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "ONLY output one word: %s.", joinOr(quoted))
	}
	return b.String()
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
	}
}
