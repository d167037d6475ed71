package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateChatShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "```sql\nSELECT 1\n```"}}},
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 7},
		})
	}))
	defer server.Close()

	tokens := &TokenSummary{}
	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key", Model: "gpt-5"}, tokens)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	out, err := client.Generate(context.Background(), "prompt text", Options{
		StopSequences:   []string{"</example>"},
		AssistantPrefix: "SQL: ```sql",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "```sql\nSELECT 1\n```" {
		t.Fatalf("out = %q", out)
	}

	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	assistant := messages[1].(map[string]any)
	if assistant["role"] != "assistant" || assistant["content"] != "SQL: ```sql" {
		t.Fatalf("assistant turn = %#v", assistant)
	}
	if captured["temperature"] != float64(0) {
		t.Fatalf("temperature = %#v", captured["temperature"])
	}
	stop, ok := captured["stop"].([]any)
	if !ok || len(stop) != 1 || stop[0] != "</example>" {
		t.Fatalf("stop = %#v", captured["stop"])
	}

	input, output := tokens.Totals()
	if input != 12 || output != 7 {
		t.Fatalf("tokens = (%d, %d)", input, output)
	}
}

func TestGenerateRawTextShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": "SELECT 2"}},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key", Model: "text-davinci-003"}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	out, err := client.Generate(context.Background(), "prompt", Options{AssistantPrefix: "SQL:"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "SELECT 2" {
		t.Fatalf("out = %q", out)
	}
	promptText, _ := captured["prompt"].(string)
	if promptText != "prompt\nSQL:" {
		t.Fatalf("prompt = %q", promptText)
	}
	if _, ok := captured["messages"]; ok {
		t.Fatal("raw-text request carried a messages field")
	}
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key", Model: "gpt-5"}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Generate(context.Background(), "prompt", Options{}); err == nil {
		t.Fatal("Generate() error = nil, want failure")
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key", Model: "gpt-5"}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Generate(context.Background(), "prompt", Options{}); err == nil {
		t.Fatal("Generate() error = nil, want failure")
	}
}

func TestTokenSummaryAccumulatesAndResets(t *testing.T) {
	summary := &TokenSummary{}
	summary.Add(10, 5)
	summary.Add(3, 2)
	input, output := summary.Totals()
	if input != 13 || output != 7 {
		t.Fatalf("Totals() = (%d, %d)", input, output)
	}
	summary.Reset()
	input, output = summary.Totals()
	if input != 0 || output != 0 {
		t.Fatalf("Totals() after Reset = (%d, %d)", input, output)
	}
}
