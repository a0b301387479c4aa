package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Message is a single turn in an intake conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Assistant generates intake questions and summaries from a conversation
// transcript. Implementations are injected explicitly; no package-level
// client exists, so every caller names its dependency.
type Assistant interface {
	// NextQuestion returns the next intake question given the transcript so
	// far, or done=true when the interview has gathered enough.
	NextQuestion(ctx context.Context, transcript []Message) (question string, done bool, err error)
	// Summarize condenses a finished transcript into clinician-facing notes.
	Summarize(ctx context.Context, transcript []Message) (string, error)
}

// Config holds the settings for the remote model endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient builds a client for the configured endpoint.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

const intakeSystemPrompt = "You are a medical intake assistant. Ask one concise question at a time " +
	"to gather the patient's symptoms, history and medications. When you have enough " +
	"information, reply with exactly DONE."

const summarySystemPrompt = "Summarize the following patient intake conversation as structured " +
	"clinical notes for the treating physician. Be factual and concise."

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) complete(ctx context.Context, system string, transcript []Message) (string, error) {
	msgs := make([]Message, 0, len(transcript)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	msgs = append(msgs, transcript...)

	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model endpoint: %w", err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("model endpoint returned %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// NextQuestion implements Assistant.
func (c *Client) NextQuestion(ctx context.Context, transcript []Message) (string, bool, error) {
	reply, err := c.complete(ctx, intakeSystemPrompt, transcript)
	if err != nil {
		return "", false, err
	}
	if reply == "DONE" {
		return "", true, nil
	}
	return reply, false, nil
}

// Summarize implements Assistant.
func (c *Client) Summarize(ctx context.Context, transcript []Message) (string, error) {
	return c.complete(ctx, summarySystemPrompt, transcript)
}
