// Package gemini implements the llm ports on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/claimjet/config"
	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/llm"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	DefaultModel          = "gemini-3-flash-preview"
	DefaultSearchTimeout  = 30 * time.Second
	DefaultExtractTimeout = 20 * time.Second
	DefaultDraftTimeout   = 60 * time.Second
)

// generator is the subset of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	log            *zap.Logger
	models         generator
	model          string
	searchTimeout  time.Duration
	extractTimeout time.Duration
}

// New builds a client from configuration. The API key is required and is
// only handed to the SDK.
func New(ctx context.Context, cfg config.GenAIConfig, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return newClient(client.Models, cfg, log), nil
}

func newClient(models generator, cfg config.GenAIConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		log:            log,
		models:         models,
		model:          model,
		searchTimeout:  orDefault(cfg.SearchTimeout, DefaultSearchTimeout),
		extractTimeout: orDefault(cfg.ExtractTimeout, DefaultExtractTimeout),
	}
}

// WithDraftTimeout returns a copy of c for letter drafting: its grounded
// queries are bounded by timeout, or DefaultDraftTimeout when timeout is not
// positive.
func (c *Client) WithDraftTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.searchTimeout = orDefault(timeout, DefaultDraftTimeout)
	return &cp
}

func (c *Client) GroundedQuery(ctx context.Context, prompt string) (llm.GroundedResponse, error) {
	const op = "gemini.GroundedQuery"

	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return llm.GroundedResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return llm.GroundedResponse{}, fmt.Errorf("%s: %w", op, domain.ErrEmptyResponse)
	}

	out := llm.GroundedResponse{
		Text:    resp.Text(),
		Sources: groundingSources(resp),
	}
	c.log.Debug("grounded query completed",
		zap.String("op", op),
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_len", len(out.Text)),
		zap.Int("grounding_sources", len(out.Sources)),
	)
	return out, nil
}

func (c *Client) ExtractJSON(ctx context.Context, prompt string, schema llm.Schema) ([]byte, error) {
	const op = "gemini.ExtractJSON"

	ctx, cancel := context.WithTimeout(ctx, c.extractTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenAISchema(schema),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrEmptyResponse)
	}

	text := resp.Text()
	c.log.Debug("extraction completed",
		zap.String("op", op),
		zap.String("schema", schema.Name),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_len", len(text)),
	)
	return []byte(text), nil
}

func toGenAISchema(schema llm.Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(schema.Fields))
	order := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		s := &genai.Schema{
			Type:        fieldType(f.Type),
			Description: f.Description,
		}
		if len(f.Enum) > 0 {
			s.Enum = append([]string(nil), f.Enum...)
		}
		props[f.Name] = s
		order = append(order, f.Name)
	}

	return &genai.Schema{
		Type:             genai.TypeObject,
		Title:            schema.Name,
		Properties:       props,
		PropertyOrdering: order,
		Required:         schema.RequiredFields(),
	}
}

func fieldType(t llm.FieldType) genai.Type {
	switch t {
	case llm.FieldInteger:
		return genai.TypeInteger
	default:
		return genai.TypeString
	}
}

func groundingSources(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}

	sources := make([]string, 0, len(gm.GroundingChunks))
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, chunk.Web.URI)
	}
	return sources
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

var (
	_ llm.GroundedQuerier     = (*Client)(nil)
	_ llm.StructuredExtractor = (*Client)(nil)
)
