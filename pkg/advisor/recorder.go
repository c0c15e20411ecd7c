package advisor

import (
	"context"
	"time"
)

// ConversationRecorder captures prompt/response pairs for audit and cost
// tracking.
type ConversationRecorder interface {
	RecordConversation(ctx context.Context, rec ConversationRecord) error
}

// ConversationRecord describes a single advisor to LLM interaction.
type ConversationRecord struct {
	Model            string    `json:"model"`
	PromptDigest     string    `json:"prompt_digest"`
	Prompt           string    `json:"prompt"`
	Response         string    `json:"response"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Err              string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

type noopConversationRecorder struct{}

func (noopConversationRecorder) RecordConversation(context.Context, ConversationRecord) error {
	return nil
}

// Option customises an Advisor.
type Option func(*Advisor)

// WithConversationRecorder injects a recorder; nil restores the noop.
func WithConversationRecorder(recorder ConversationRecorder) Option {
	return func(a *Advisor) {
		if recorder == nil {
			a.conversations = noopConversationRecorder{}
			return
		}
		a.conversations = recorder
	}
}

// WithClock overrides the time source used in prompts and records.
func WithClock(now func() time.Time) Option {
	return func(a *Advisor) {
		if now != nil {
			a.now = now
		}
	}
}
