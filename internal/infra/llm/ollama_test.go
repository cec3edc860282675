// Unit tests for OllamaProvider.
// Uses httptest.NewServer to mock the Ollama HTTP API — no real Ollama needed.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaProvider_ChatCompletion_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if req.Stream {
			http.Error(w, "expected stream=false", http.StatusBadRequest)
			return
		}
		if req.Model != "llama2" {
			http.Error(w, "wrong model", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaChatResponse{ //nolint:errcheck
			Message:         ollamaChatMessage{Role: "assistant", Content: "hola"},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 12,
			EvalCount:       3,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama2")
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "hola" {
		t.Errorf("expected content hola, got %q", resp.Content)
	}
	if resp.StopReason != "stop" {
		t.Errorf("expected stop reason, got %q", resp.StopReason)
	}
	if resp.Usage == nil || resp.Usage.Input != 12 || resp.Usage.Output != 3 || resp.Usage.Total != 15 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestOllamaProvider_ChatCompletion_NoUsageReported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaChatResponse{ //nolint:errcheck
			Message: ollamaChatMessage{Role: "assistant", Content: "ok"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama2")
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Usage != nil {
		t.Errorf("expected nil usage when counters absent, got %+v", resp.Usage)
	}
}

func TestOllamaProvider_ChatCompletion_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama2")
	if _, err := p.ChatCompletion(context.Background(), ChatRequest{}); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestOllamaProvider_ChatStream_DeltasAndFinalUsage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Stream {
			http.Error(w, "expected stream=true", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []ollamaChatResponse{
			{Message: ollamaChatMessage{Role: "assistant", Content: "ho"}},
			{Message: ollamaChatMessage{Role: "assistant", Content: "la"}},
			{Done: true, DoneReason: "stop", PromptEvalCount: 5, EvalCount: 2},
		}
		enc := json.NewEncoder(w)
		for _, l := range lines {
			enc.Encode(l) //nolint:errcheck
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama2")
	stream, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	var text strings.Builder
	var final *StreamChunk
	for chunk := range stream {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		text.WriteString(chunk.Delta)
		if chunk.Done {
			c := chunk
			final = &c
		}
	}

	if text.String() != "hola" {
		t.Errorf("expected accumulated text hola, got %q", text.String())
	}
	if final == nil {
		t.Fatal("expected a final Done chunk")
	}
	if final.Usage == nil || final.Usage.Total != 7 {
		t.Errorf("expected final usage total 7, got %+v", final.Usage)
	}
}

func TestOllamaProvider_ChatStream_MalformedLine_EmitsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"he"}}`)
		fmt.Fprintln(w, `{not json`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama2")
	stream, err := p.ChatStream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	var deltas string
	var streamErr error
	for chunk := range stream {
		deltas += chunk.Delta
		if chunk.Err != nil {
			streamErr = chunk.Err
		}
	}
	if deltas != "he" {
		t.Errorf("expected partial text before failure, got %q", deltas)
	}
	if streamErr == nil {
		t.Error("expected a terminal stream error chunk")
	}
}

func TestOllamaProvider_ChatStream_CancelledConsumer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 50; i++ {
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":"x"}}`)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOllamaProvider(srv.URL, "llama2")
	stream, err := p.ChatStream(ctx, ChatRequest{})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	<-stream
	cancel()

	// The producer must stop and close the channel promptly.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestOllamaProvider_HealthCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama2")
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}

	srv.Close()
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("expected error when server is down")
	}
}
