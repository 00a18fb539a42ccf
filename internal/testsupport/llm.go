package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// ScriptedLLMServer is a fake chat-completion endpoint that returns a
// canned response chosen by matching a substring against the inbound
// prompt, so a test can script per-stage behavior without depending on
// call order. Requests matching no rule get FallbackResponse.
type ScriptedLLMServer struct {
	Server *httptest.Server

	mu               sync.Mutex
	rules            []scriptedRule
	FallbackResponse string
	Calls            int
}

type scriptedRule struct {
	contains string
	response string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewScriptedLLMServer starts an httptest server implementing the
// chat-completion contract internal/llm.Client speaks.
func NewScriptedLLMServer() *ScriptedLLMServer {
	s := &ScriptedLLMServer{FallbackResponse: `{}`}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// WhenPromptContains registers a canned response returned for every
// request whose prompt contains substr; rules are checked in
// registration order and the first matching rule wins.
func (s *ScriptedLLMServer) WhenPromptContains(substr, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptedRule{contains: substr, response: response})
}

func (s *ScriptedLLMServer) handle(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[0].Content
	}

	s.mu.Lock()
	s.Calls++
	response := s.FallbackResponse
	for _, rule := range s.rules {
		if strings.Contains(prompt, rule.contains) {
			response = rule.response
			break
		}
	}
	s.mu.Unlock()

	body := chatCompletionResponse{Choices: []struct {
		Message chatMessage `json:"message"`
	}{{Message: chatMessage{Role: "assistant", Content: response}}}}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// Close shuts down the underlying httptest server.
func (s *ScriptedLLMServer) Close() { s.Server.Close() }
