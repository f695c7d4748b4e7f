package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danshapiro/courier/internal/llm"
)

func TestAdapter_Complete_SendsChatCompletionsBody(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/chat/completions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"c1","model":"doubao","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"booker"}}],"usage":{"prompt_tokens":10,"completion_tokens":1,"total_tokens":11}}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{
		Provider: "ark",
		APIKey:   "k",
		BaseURL:  srv.URL + "/api/v3/",
		Path:     "/chat/completions",
	})
	temp := 0.1
	maxTokens := 64
	resp, err := a.Complete(context.Background(), llm.Request{
		Provider:    "ark",
		Model:       "doubao",
		Messages:    []llm.Message{llm.System("classify"), llm.User("Book me a flight to London.")},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "booker" {
		t.Fatalf("text: %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 11 {
		t.Fatalf("usage: %+v", resp.Usage)
	}
	if resp.Finish.Reason != "stop" {
		t.Fatalf("finish: %+v", resp.Finish)
	}
	if gotAuth != "Bearer k" {
		t.Fatalf("auth header: %q", gotAuth)
	}
	if gotBody["temperature"] != 0.1 || gotBody["max_tokens"] != float64(64) {
		t.Fatalf("body sampling params: %v", gotBody)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages: %v", gotBody["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "classify" {
		t.Fatalf("first message: %v", first)
	}
}

func TestAdapter_Complete_MapsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{Provider: "ark", APIKey: "bad", BaseURL: srv.URL})
	_, err := a.Complete(context.Background(), llm.Request{Model: "m", Messages: []llm.Message{llm.User("hi")}})
	if !llm.IsAuthenticationError(err) {
		t.Fatalf("expected AuthenticationError, got %T (%v)", err, err)
	}
}

func TestAdapter_Complete_MalformedBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{Provider: "ark", APIKey: "k", BaseURL: srv.URL})
	_, err := a.Complete(context.Background(), llm.Request{Model: "m", Messages: []llm.Message{llm.User("hi")}})
	var te *llm.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T (%v)", err, err)
	}
}

func TestAdapter_Complete_MissingChoicesIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{Provider: "ark", APIKey: "k", BaseURL: srv.URL})
	_, err := a.Complete(context.Background(), llm.Request{Model: "m", Messages: []llm.Message{llm.User("hi")}})
	var te *llm.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T (%v)", err, err)
	}
}

func TestAdapter_Complete_MergesProviderOptions(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"length","message":{"content":"x"}}]}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{Provider: "ark", APIKey: "k", BaseURL: srv.URL})
	resp, err := a.Complete(context.Background(), llm.Request{
		Model:    "m",
		Messages: []llm.Message{llm.User("hi")},
		ProviderOptions: map[string]any{
			"ark":    map[string]any{"thinking": map[string]any{"type": "disabled"}},
			"openai": map[string]any{"ignored": true},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := gotBody["thinking"]; !ok {
		t.Fatalf("ark provider options not merged: %v", gotBody)
	}
	if _, ok := gotBody["ignored"]; ok {
		t.Fatalf("foreign provider options leaked: %v", gotBody)
	}
	if resp.Finish.Reason != "max_tokens" {
		t.Fatalf("finish reason: %q", resp.Finish.Reason)
	}
}
