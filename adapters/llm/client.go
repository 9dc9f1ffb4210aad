package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gocorr/internal/config"
	"gocorr/internal/errors"
)

// OpenAIClient implements ports.LLMClient against the chat completions API
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	httpClient *http.Client
}

// NewOpenAIClient creates a client from the AI configuration
func NewOpenAIClient(cfg config.AIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.ConfigInvalid("missing OpenAI API key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAIClient{
		APIKey:      cfg.APIKey,
		BaseURL:     baseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

const systemContext = "You are a data analysis assistant that maps user-supplied variable names to real dataset column names. Respond with a single JSON object."

// ChatCompletion sends one system + one user message and returns the raw text content
func (c *OpenAIClient) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type reqBody struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
	}

	body := reqBody{
		Model: c.Model,
		Messages: []msg{
			{Role: "system", Content: systemContext},
			{Role: "user", Content: prompt},
		},
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.ExternalServiceError("llm", fmt.Errorf("request timeout after %v: %w", c.Timeout, err))
		}
		return "", errors.ExternalServiceError("llm", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", errors.ExternalServiceError("llm", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("failed to parse response envelope: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	return envelope.Choices[0].Message.Content, nil
}

// MockLLMClient is a scripted LLM client for testing. Responses are consumed
// in order; the last one repeats once the script runs out.
type MockLLMClient struct {
	Responses []string
	Error     error
	Calls     int
	Prompts   []string
}

func (m *MockLLMClient) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	m.Calls++
	m.Prompts = append(m.Prompts, prompt)
	if m.Error != nil {
		return "", m.Error
	}
	if len(m.Responses) == 0 {
		return "{}", nil
	}
	idx := m.Calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}
