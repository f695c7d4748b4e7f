package google

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/danshapiro/courier/internal/llm"
)

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	_ = ctx
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func TestAdapter_Complete_MapsMessagesAndConfig(t *testing.T) {
	g := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText("Rome", genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 1, TotalTokenCount: 5},
	}}
	a := newWithGenerator("gemini", g)
	if a.Name() != "google" {
		t.Fatalf("name: %q", a.Name())
	}
	temp := 0.2
	maxTokens := 100
	resp, err := a.Complete(context.Background(), llm.Request{
		Model:       "gemini-2.0-flash",
		Messages:    []llm.Message{llm.System("be brief"), llm.User("capital of Italy?"), llm.Assistant("Rome"), llm.User("sure?")},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "Rome" || resp.Finish.Reason != "stop" || resp.Usage.TotalTokens != 5 {
		t.Fatalf("response: %+v", resp)
	}
	if g.model != "gemini-2.0-flash" {
		t.Fatalf("model: %q", g.model)
	}
	if len(g.contents) != 3 {
		t.Fatalf("contents: got %d want 3", len(g.contents))
	}
	if g.contents[1].Role != "model" {
		t.Fatalf("assistant role should map to model, got %q", g.contents[1].Role)
	}
	if g.config.SystemInstruction == nil || g.config.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction not mapped: %+v", g.config.SystemInstruction)
	}
	if g.config.Temperature == nil || *g.config.Temperature != float32(0.2) {
		t.Fatalf("temperature: %v", g.config.Temperature)
	}
	if g.config.MaxOutputTokens != 100 {
		t.Fatalf("max tokens: %d", g.config.MaxOutputTokens)
	}
}

func TestAdapter_Complete_NoCandidatesIsTransportError(t *testing.T) {
	a := newWithGenerator("google", &fakeGenerator{resp: &genai.GenerateContentResponse{}})
	_, err := a.Complete(context.Background(), llm.Request{Model: "m", Messages: []llm.Message{llm.User("hi")}})
	var te *llm.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T (%v)", err, err)
	}
}

func TestAdapter_Complete_WrapsSDKErrors(t *testing.T) {
	a := newWithGenerator("google", &fakeGenerator{err: errors.New("connection reset")})
	_, err := a.Complete(context.Background(), llm.Request{Model: "m", Messages: []llm.Message{llm.User("hi")}})
	if !llm.IsOracleError(err) {
		t.Fatalf("expected oracle error, got %T (%v)", err, err)
	}
}

func TestAdapter_Complete_RequiresConversationContent(t *testing.T) {
	a := newWithGenerator("google", &fakeGenerator{})
	_, err := a.Complete(context.Background(), llm.Request{Model: "m", Messages: []llm.Message{llm.System("only system")}})
	var ce *llm.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "google", " ", ""); err == nil {
		t.Fatalf("expected error for blank api key")
	}
}
