package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// systemPrompt frames the model as a social media handler. Replies must fit
// in a tweet, so the 280-character guidance is part of the contract.
const systemPrompt = "You are a professional social media handler. Respond to customer " +
	"inquiries in a friendly, helpful, and professional manner. Keep responses " +
	"concise and under 280 characters."

// Responder drafts reply suggestions for mentions using a chat-completion API.
type Responder struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// Config holds chat-completion settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns sensible defaults for short social replies.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4,
		Temperature: 0.7,
		MaxTokens:   150,
	}
}

// ConfigFromEnv creates config from environment variables with defaults.
func ConfigFromEnv() Config {
	config := DefaultConfig()
	config.APIKey = os.Getenv("OPENAI_API_KEY")

	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.Model = model
	}

	return config
}

// NewResponder creates a responder, or an error when no API key is set.
func NewResponder(config Config, logger *slog.Logger) (*Responder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	return &Responder{
		client: openai.NewClient(config.APIKey),
		config: config,
		logger: logger,
	}, nil
}

// SuggestReply generates a reply draft for the given mention text. A
// non-empty customPrompt replaces the default framing but the system prompt
// still applies.
func (r *Responder) SuggestReply(ctx context.Context, mentionText, customPrompt string) (string, error) {
	prompt := customPrompt
	if prompt == "" {
		prompt = "Draft a reply to this mention:"
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.config.Model,
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt + "\n\nUser's message: " + mentionText,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)

	r.logger.Debug("generated reply suggestion",
		"model", r.config.Model,
		"prompt_length", len(mentionText),
		"reply_length", len(reply))

	return reply, nil
}
