package store

import (
	"encoding/json"
	"time"
)

// Feedback lifecycle states. Only applied records are eligible for
// matching against live traffic.
const (
	FeedbackPending  = "pending"
	FeedbackApplied  = "applied"
	FeedbackRejected = "rejected"
)

type Bot struct {
	ID           string    `json:"id"` // UUID
	Name         string    `json:"name"`
	Description  *string   `json:"description"` // Nullable
	SystemPrompt string    `json:"system_prompt"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Flow struct {
	ID             string          `json:"id"` // UUID
	BotID          string          `json:"bot_id"`
	Name           string          `json:"name"`
	TriggerKeyword string          `json:"trigger_keyword"`
	Steps          json.RawMessage `json:"steps"` // Opaque, never destructured
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Integration struct {
	ID           string          `json:"id"` // UUID
	BotID        string          `json:"bot_id"`
	Provider     string          `json:"provider"` // "evolution" or "kommo"
	InstanceName string          `json:"instance_name"`
	Config       json.RawMessage `json:"config"` // Opaque provider settings
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type KnowledgeFile struct {
	ID          string    `json:"id"` // UUID
	BotID       string    `json:"bot_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Content     []byte    `json:"-"` // Not included in list responses
	CreatedAt   time.Time `json:"created_at"`
}

type ConsoleUser struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

// FeedbackRecord is a stored human correction mapping a past bad bot
// response to an improved one.
type FeedbackRecord struct {
	ID                  string          `json:"id"` // UUID
	BotID               string          `json:"bot_id"`
	UserMessageContext  string          `json:"user_message_context"`
	OriginalBotResponse string          `json:"original_bot_response"`
	ImprovedResponse    string          `json:"improved_response"`
	Status              string          `json:"status"` // pending, applied or rejected
	SimilarityKeywords  []string        `json:"similarity_keywords"`
	ConversationContext json.RawMessage `json:"conversation_context,omitempty"` // Opaque
	TimesApplied        int             `json:"times_applied"`
	LastAppliedAt       *time.Time      `json:"last_applied_at"` // Nullable
	CreatedAt           time.Time       `json:"created_at"`
}

// FeedbackStats aggregates a bot's feedback records.
type FeedbackStats struct {
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"by_status"`
	TotalApplications int            `json:"total_applications"`
}
