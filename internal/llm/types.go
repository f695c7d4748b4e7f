package llm

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentKind string

const (
	ContentText ContentKind = "text"
)

type ContentPart struct {
	Kind ContentKind
	Text string
}

type Message struct {
	Role    Role
	Content []ContentPart
}

func System(text string) Message    { return textMessage(RoleSystem, text) }
func User(text string) Message      { return textMessage(RoleUser, text) }
func Assistant(text string) Message { return textMessage(RoleAssistant, text) }

func textMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentPart{{Kind: ContentText, Text: text}}}
}

// Text concatenates the message's text parts in order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if p.Kind == ContentText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

type Request struct {
	Provider    string
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int

	// ProviderOptions is merged into the provider body under the adapter's options key.
	ProviderOptions map[string]any
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &ConfigurationError{Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ConfigurationError{Message: "at least one message is required"}
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return &ConfigurationError{Message: fmt.Sprintf("messages[%d]: unsupported role %q", i, m.Role)}
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return &ConfigurationError{Message: fmt.Sprintf("temperature %v out of range [0,2]", *r.Temperature)}
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return &ConfigurationError{Message: "max_tokens must be positive"}
	}
	return nil
}

type FinishReason struct {
	Reason string
	Raw    string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Response struct {
	ID       string
	Provider string
	Model    string
	Message  Message
	Finish   FinishReason
	Usage    Usage
}

func (r Response) Text() string { return r.Message.Text() }

// Sampling carries the per-call oracle configuration shared by the routing,
// accounting, and pipeline components.
type Sampling struct {
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// Request builds a Request for msgs using s.
func (s Sampling) Request(msgs ...Message) Request {
	return Request{
		Provider:    s.Provider,
		Model:       s.Model,
		Messages:    msgs,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}
