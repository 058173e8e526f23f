package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/newsdesk/internal/config"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestSuggestionServiceSuggest(t *testing.T) {
	svc := NewSuggestionService(config.AIConfig{APIKey: "sk-test", BaseURL: "https://llm.test/v1/", Model: "newsroom-1"})
	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header %s", got)
		}

		var payload chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Model != "newsroom-1" {
			t.Fatalf("unexpected model %s", payload.Model)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
			t.Fatalf("unexpected messages %+v", payload.Messages)
		}
		user := payload.Messages[1].Content
		if !strings.Contains(user, "写一个标题") || !strings.Contains(user, "media://1") {
			t.Fatalf("prompt should carry the request and compressed image links, got %q", user)
		}
		if strings.Contains(user, "cdn.example.com") {
			t.Fatalf("image urls should be replaced by placeholders")
		}

		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  地震快讯 ![](media://1)  "}}],"usage":{"prompt_tokens":12,"completion_tokens":5}}`), nil
	}})

	suggestion, err := svc.Suggest(context.Background(), SuggestionInput{
		Prompt:  "写一个标题",
		Context: "正文 ![map](https://cdn.example.com/very/long/path/map.png)",
	})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion.Text != "地震快讯 ![](https://cdn.example.com/very/long/path/map.png)" {
		t.Fatalf("unexpected suggestion %q", suggestion.Text)
	}
	if suggestion.PromptTokens != 12 || suggestion.CompletionTokens != 5 {
		t.Fatalf("unexpected usage %+v", suggestion)
	}
}

func TestSuggestionServiceErrors(t *testing.T) {
	ctx := context.Background()

	missingKey := NewSuggestionService(config.AIConfig{})
	if _, err := missingKey.Suggest(ctx, SuggestionInput{Prompt: "hi"}); !errors.Is(err, ErrAIAPIKeyMissing) {
		t.Fatalf("expected ErrAIAPIKeyMissing, got %v", err)
	}

	svc := NewSuggestionService(config.AIConfig{APIKey: "sk-test", Provider: "DeepSeek"})
	_, err := svc.Suggest(ctx, SuggestionInput{Prompt: "   "})
	assertValidationField(t, err, "prompt")

	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "api.deepseek.com" {
			t.Fatalf("expected deepseek default base url, got %s", r.URL.Host)
		}
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`), nil
	}})
	if _, err := svc.Suggest(ctx, SuggestionInput{Prompt: "hi"}); !errors.Is(err, ErrSuggestionEmpty) {
		t.Fatalf("expected ErrSuggestionEmpty, got %v", err)
	}

	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`), nil
	}})
	_, err = svc.Suggest(ctx, SuggestionInput{Prompt: "hi"})
	if !errors.Is(err, ErrAIUpstream) || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected upstream error with message, got %v", err)
	}

	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}})
	if _, err := svc.Suggest(ctx, SuggestionInput{Prompt: "hi"}); !errors.Is(err, ErrAIUpstream) {
		t.Fatalf("expected ErrAIUpstream on transport failure, got %v", err)
	}
}
