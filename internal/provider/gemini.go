package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Default Gemini models.
const (
	DefaultGeminiModel = "gemini-2.5-flash"

	// DefaultGeminiEmbedModel outputs 3072 dimensions by default but
	// supports truncation via OutputDimensionality (Matryoshka
	// Representation Learning). The pgvector schema dimension must match
	// the configured output dimensionality.
	DefaultGeminiEmbedModel = "gemini-embedding-001"
)

// GeminiConfig holds configuration for the Gemini backend.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API (required).
	APIKey string

	// Model is the completion model (default: gemini-2.5-flash).
	Model string

	// EmbedModel is the embedding model (default: gemini-embedding-001).
	EmbedModel string

	// EmbedDimension truncates embedding output to this dimension.
	// Zero keeps the model default.
	EmbedDimension int32

	// Temperature for completions. Zero means the server default.
	Temperature float32
}

// GeminiClient implements Client on top of the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	embedModel  string
	embedDim    int32
	temperature float32
}

var _ Client = (*GeminiClient)(nil)

// NewGemini creates a Client backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultGeminiEmbedModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		embedDim:    cfg.EmbedDimension,
		temperature: cfg.Temperature,
	}, nil
}

// Embed generates an embedding vector for text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedCfg *genai.EmbedContentConfig
	if c.embedDim > 0 {
		dim := c.embedDim
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embedCfg)
	if err != nil {
		return nil, classify(ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrEmbedding)
	}
	return resp.Embeddings[0].Values, nil
}

// Complete produces an assistant reply from the full turn sequence.
// System turns are collected into the request's system instruction; the
// Gemini API has no system role in the content stream.
func (c *GeminiClient) Complete(ctx context.Context, turns []Turn) (string, error) {
	genCfg := &genai.GenerateContentConfig{}
	if c.temperature > 0 {
		genCfg.Temperature = genai.Ptr(c.temperature)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			system = append(system, t.Text)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Text, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return "", classify(ErrCompletion, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response returned", ErrCompletion)
	}
	return text, nil
}
