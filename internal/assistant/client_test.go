package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendBuildsConversation(t *testing.T) {
	var captured apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "Take with food."}}}},
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash", 5*time.Second)
	client.baseURL = server.URL

	history := []Turn{
		{Role: "user", Text: "Hello"},
		{Role: "model", Text: "Hi, how can I help?"},
	}
	image := &Image{MimeType: "image/png", Data: "aGVsbG8="}
	reply, err := client.Send(context.Background(), history, "Any interactions with ibuprofen?", image)
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if reply != "Take with food." {
		t.Fatalf("unexpected reply %q", reply)
	}

	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != SystemInstruction {
		t.Fatalf("system instruction not sent")
	}
	if captured.GenerationConfig.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7 got %v", captured.GenerationConfig.Temperature)
	}
	// Two history turns plus the new message.
	if len(captured.Contents) != 3 {
		t.Fatalf("expected 3 contents got %d", len(captured.Contents))
	}
	last := captured.Contents[2]
	if last.Role != "user" || len(last.Parts) != 2 {
		t.Fatalf("unexpected final content %+v", last)
	}
	if last.Parts[0].InlineData == nil || last.Parts[0].InlineData.MimeType != "image/png" {
		t.Fatalf("image part missing")
	}
	if last.Parts[1].Text != "Any interactions with ibuprofen?" {
		t.Fatalf("message text missing")
	}
}

func TestSendUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "overloaded"}})
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash", 5*time.Second)
	client.baseURL = server.URL

	_, err := client.Send(context.Background(), nil, "hello", nil)
	if err == nil {
		t.Fatalf("expected error for upstream failure")
	}
}

func TestSendWithoutAPIKey(t *testing.T) {
	client := NewClient("", "gemini-2.5-flash", time.Second)
	_, err := client.Send(context.Background(), nil, "hello", nil)
	if err != ErrNoAPIKey {
		t.Fatalf("expected ErrNoAPIKey got %v", err)
	}
}
