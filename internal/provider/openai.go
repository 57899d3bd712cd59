package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values for the OpenAI-compatible backend.
const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultOpenAIEmbedModel = "text-embedding-3-small"
	DefaultOpenAITimeout    = 60 * time.Second

	// lmStudioAPIKey is the placeholder key LM Studio expects; it does
	// not validate it.
	lmStudioAPIKey = "lm-studio"
)

// OpenAIConfig holds configuration for the OpenAI-compatible backend.
// Setting BaseURL to a local server (LM Studio, llama.cpp) makes this the
// local-model adapter; the wire protocol is identical.
type OpenAIConfig struct {
	// APIKey authenticates requests. Optional for local servers.
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the chat completion model (default: gpt-4o-mini).
	Model string

	// EmbedModel is the embedding model (default: text-embedding-3-small).
	EmbedModel string

	// Dimensions requests embeddings of this size from models that
	// support shortening (the text-embedding-3 family). Zero omits the
	// parameter and takes the model's native size; local servers
	// generally do not accept it.
	Dimensions int

	// Temperature for completions. Zero means the server default.
	Temperature float64

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// OpenAIClient implements Client against any OpenAI-compatible API.
type OpenAIClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	embedModel  string
	dimensions  int
	temperature float64
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAI creates a Client for an OpenAI-compatible API.
func NewOpenAI(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultOpenAIEmbedModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultOpenAITimeout
	}
	if cfg.APIKey == "" {
		cfg.APIKey = lmStudioAPIKey
	}

	return &OpenAIClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		dimensions:  cfg.Dimensions,
		temperature: cfg.Temperature,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Embed generates an embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embeddingResponse
	err := c.post(ctx, "/embeddings", embeddingRequest{
		Model:      c.embedModel,
		Input:      []string{text},
		Dimensions: c.dimensions,
	}, &resp)
	if err != nil {
		return nil, classify(ErrEmbedding, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmbedding, resp.Error.Message)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrEmbedding)
	}
	return resp.Data[0].Embedding, nil
}

// Complete produces an assistant reply from the full turn sequence.
func (c *OpenAIClient) Complete(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]chatCompletionMsg, len(turns))
	for i, t := range turns {
		messages[i] = chatCompletionMsg{Role: string(t.Role), Content: t.Text}
	}

	var resp chatCompletionResponse
	err := c.post(ctx, "/chat/completions", chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}, &resp)
	if err != nil {
		return "", classify(ErrCompletion, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrCompletion, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

// post sends a JSON request and decodes the JSON response.
func (c *OpenAIClient) post(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// truncateBody bounds error message size when the server returns garbage.
func truncateBody(body []byte) string {
	const maxLen = 512
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}

// classify wraps err with the given failure kind, promoting deadline and
// timeout errors to ErrTimeout so callers can retry with backoff.
func classify(kind error, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
