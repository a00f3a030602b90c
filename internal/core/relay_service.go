package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultChatTimeout bounds one upstream workflow call. The engine can
	// legitimately take minutes on long agent runs.
	DefaultChatTimeout = 280 * time.Second

	// Reply used when the engine answers without an output field.
	fallbackReply = "Desculpe, não consegui processar sua mensagem."
)

// ChatTurn is one user turn forwarded to the workflow engine.
type ChatTurn struct {
	ChatInput      string          `json:"chatInput"`
	SessionID      string          `json:"sessionId"`
	Assistant      json.RawMessage `json:"assistant"`
	PromptVersions json.RawMessage `json:"promptVersions,omitempty"`
}

// ChatReply relays the engine's answer back to the caller, echoing the
// session and assistant payload it was asked about.
type ChatReply struct {
	Success        bool            `json:"success"`
	Response       string          `json:"response"`
	SessionID      string          `json:"sessionId"`
	Assistant      json.RawMessage `json:"assistant"`
	PromptVersions json.RawMessage `json:"promptVersions,omitempty"`
}

// RelayService forwards chat turns to the N8N workflow engine. It is
// stateless: no retries, no queueing, at-most-once delivery. The caller
// owns any retry policy.
type RelayService struct {
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
}

func NewRelayService(webhookURL string, timeout time.Duration) *RelayService {
	if timeout <= 0 {
		timeout = DefaultChatTimeout
	}
	return &RelayService{
		webhookURL: webhookURL,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Relay validates the turn, posts it upstream and extracts the reply.
// Validation and configuration failures happen before any network call.
func (s *RelayService) Relay(ctx context.Context, turn *ChatTurn) (*ChatReply, error) {
	if strings.TrimSpace(turn.ChatInput) == "" {
		return nil, ValidationError("chatInput is required")
	}
	if strings.TrimSpace(turn.SessionID) == "" {
		return nil, ValidationError("sessionId is required")
	}
	if len(turn.Assistant) == 0 || string(turn.Assistant) == "null" {
		return nil, ValidationError("assistant is required")
	}
	if s.webhookURL == "" {
		return nil, ConfigurationError("N8N_WEBHOOK_URL is not configured")
	}

	payload, err := json.Marshal(turn)
	if err != nil {
		return nil, ValidationError("invalid chat payload: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, ConfigurationError("invalid webhook URL: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, TimeoutError(err, "workflow engine call exceeded %s", s.timeout)
		}
		return nil, UpstreamError(err, "workflow engine call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, UpstreamError(fmt.Errorf("status %d", resp.StatusCode), "workflow engine returned an error")
	}

	var body struct {
		Output string `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, UpstreamError(err, "workflow engine returned an unreadable body")
	}
	if body.Output == "" {
		body.Output = fallbackReply
	}

	return &ChatReply{
		Success:        true,
		Response:       body.Output,
		SessionID:      turn.SessionID,
		Assistant:      turn.Assistant,
		PromptVersions: turn.PromptVersions,
	}, nil
}
