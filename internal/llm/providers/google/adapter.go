package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/danshapiro/courier/internal/llm"
	"github.com/danshapiro/courier/internal/providerspec"
)

// generator is the slice of *genai.Models the adapter needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Adapter struct {
	Provider string
	models   generator
}

// New creates a Gemini adapter backed by the genai SDK. baseURL is optional.
func New(ctx context.Context, provider, apiKey, baseURL string) (*Adapter, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, &llm.ConfigurationError{Message: "gemini api key is required"}
	}
	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newWithGenerator(provider, client.Models), nil
}

func newWithGenerator(provider string, g generator) *Adapter {
	p := providerspec.CanonicalProviderKey(provider)
	if p == "" {
		p = "google"
	}
	return &Adapter{Provider: p, models: g}
}

func (a *Adapter) Name() string { return a.Provider }

func (a *Adapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	system, contents := toGeminiContents(req.Messages)
	if len(contents) == 0 {
		return llm.Response{}, &llm.ConfigurationError{Message: "gemini requires at least one user or assistant message"}
	}
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}

	resp, err := a.models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return llm.Response{}, a.mapError(err)
	}
	return fromGeminiResponse(a.Provider, req.Model, resp)
}

// toGeminiContents folds system messages into a single system instruction and
// maps assistant turns to the "model" role.
func toGeminiContents(msgs []llm.Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range msgs {
		text := m.Text()
		switch m.Role {
		case llm.RoleSystem:
			if strings.TrimSpace(text) != "" {
				system = append(system, text)
			}
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func fromGeminiResponse(provider, model string, resp *genai.GenerateContentResponse) (llm.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return llm.Response{}, llm.WrapContextError(provider, fmt.Errorf("generateContent response has no candidates"))
	}
	out := llm.Response{
		Provider: provider,
		Model:    model,
		Message:  llm.Assistant(resp.Text()),
	}
	if c := resp.Candidates[0]; c != nil {
		raw := string(c.FinishReason)
		out.Finish = llm.FinishReason{Reason: normalizeFinishReason(raw), Raw: raw}
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func normalizeFinishReason(in string) string {
	switch strings.ToUpper(strings.TrimSpace(in)) {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "max_tokens"
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return "content_filter"
	default:
		return strings.ToLower(strings.TrimSpace(in))
	}
}

func (a *Adapter) mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.ErrorFromHTTPStatus(a.Provider, apiErr.Code, apiErr.Message, apiErr.Details)
	}
	return llm.WrapContextError(a.Provider, err)
}
