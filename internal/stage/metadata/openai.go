package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

const (
	DefaultModel = "gpt-4o-mini"
	maxTags      = 15
)

var ErrAPIKeyNotSet = errors.New("openai api key not set")

// outputSchema is what a completion must match before any of it is used.
var outputSchema = jsonschema.MustCompileString("metadata.schema.json", `{
	"type": "object",
	"required": ["title"],
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 100},
		"description": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}}
	}
}`)

// OpenAI asks a chat model for metadata and falls back to the template
// when the call fails or returns something unusable.
type OpenAI struct {
	client openai.Client
	model  string
}

type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	model   string
	options []option.RequestOption
}

func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRequestOptions passes extra options to the underlying SDK client.
func WithRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(c *openAIConfig) { c.options = append(c.options, opts...) }
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	cfg := openAIConfig{model: DefaultModel}
	for _, o := range opts {
		o(&cfg)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.options...)
	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  cfg.model,
	}, nil
}

type generated struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (g *OpenAI) Generate(ctx context.Context, req pipeline.MetadataRequest) (pipeline.Metadata, error) {
	fallback := Default(req)

	out, err := g.complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.Metadata{}, ctx.Err()
		}
		slog.Warn("metadata: openai generation failed, using template", "niche", req.Niche, "error", err)
		return fallback, nil
	}

	md := fallback
	if t := strings.TrimSpace(out.Title); t != "" && req.Title == "" {
		md.Title = t
	}
	if d := strings.TrimSpace(out.Description); d != "" && req.Description == "" {
		md.Description = d
	}
	if tags := cleanTags(out.Tags); len(tags) > 0 {
		md.Tags = tags
	}
	return md, nil
}

func (g *OpenAI) complete(ctx context.Context, req pipeline.MetadataRequest) (generated, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You write YouTube metadata for ranking compilation videos. " +
				`Reply with a JSON object {"title": string, "description": string, "tags": [string]}.`),
			openai.UserMessage(prompt(req)),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(700),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return generated{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return generated{}, errors.New("no completion choices returned")
	}

	content := []byte(completion.Choices[0].Message.Content)
	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return generated{}, fmt.Errorf("parse completion: %w", err)
	}
	if err := outputSchema.Validate(doc); err != nil {
		return generated{}, fmt.Errorf("completion does not match schema: %w", err)
	}

	var out generated
	if err := json.Unmarshal(content, &out); err != nil {
		return generated{}, fmt.Errorf("decode completion: %w", err)
	}
	return out, nil
}

func prompt(req pipeline.MetadataRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a catchy title under 60 characters, a description with timestamps, hashtags and a call to action, "+
		"and up to %d tags for a top %d ranking video about %s.\n", maxTags, req.Count, req.Niche)
	if len(req.ClipTitles) > 0 {
		b.WriteString("The video features, in order:\n")
		for i, t := range req.ClipTitles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t)
		}
	}
	return b.String()
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
		if len(out) == maxTags {
			break
		}
	}
	return out
}
