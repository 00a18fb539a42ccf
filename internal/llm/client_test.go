package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := New(Config{
		Endpoint:       server.URL,
		Model:          "test-model",
		APIKeys:        []string{"test-key"},
		TimeoutSeconds: 5,
	}, WithRetryPolicy(4, time.Millisecond, 5*time.Millisecond), WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return client, &calls
}

func TestCompleteSuccess(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "hello"}}},
		})
	})

	text, err := client.Complete(context.Background(), "hi", 0.5, 100)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected hello, got %q", text)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestCompleteRetriesOn429ThenSucceeds(t *testing.T) {
	attempt := int32(0)
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempt, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Content: "recovered"}}},
		})
	})

	text, err := client.Complete(context.Background(), "hi", 0.5, 100)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("expected recovered, got %q", text)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestCompleteTerminalOn400(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	text, err := client.Complete(context.Background(), "hi", 0.5, 100)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text on terminal failure, got %q", text)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected exactly 1 call for a terminal 4xx, got %d", got)
	}
}

func TestCompleteExhaustsRetryBudget(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	text, err := client.Complete(context.Background(), "hi", 0.5, 100)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text after retry exhaustion, got %q", text)
	}
	if got := atomic.LoadInt32(calls); got != 4 {
		t.Fatalf("expected 4 attempts, got %d", got)
	}
}

func TestDecodeLLMJSONStripsCodeFence(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	content := "Sure, here you go:\n```json\n{\"name\": \"scene\"}\n```\nHope that helps."
	if err := DecodeLLMJSON(content, &target); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if target.Name != "scene" {
		t.Fatalf("expected name=scene, got %q", target.Name)
	}
}

func TestDecodeLLMJSONArrayInProse(t *testing.T) {
	var target []int
	content := "The values are [1, 2, 3] as requested."
	if err := DecodeLLMJSON(content, &target); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if len(target) != 3 || target[2] != 3 {
		t.Fatalf("unexpected decode result: %v", target)
	}
}
