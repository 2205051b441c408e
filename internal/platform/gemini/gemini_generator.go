package gemini

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/scry-curriculum/internal/config"
	"github.com/phrazzld/scry-curriculum/internal/generation"
	"google.golang.org/genai"
)

// Provider names under which the generators are registered with a
// generation.Router.
const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// promptTemplates holds the parsed structure and content templates.
var promptTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// promptData represents the data passed to the prompt templates.
type promptData struct {
	Topic        string
	Structure    string
	Instructions string
}

// contentModels is the subset of *genai.Models the generator calls.
type contentModels interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements generation.Generator on top of one genai
// client. It makes exactly one model call per request; retries belong to the
// curriculum engine.
type GeminiGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// models issues GenerateContent calls
	models contentModels

	// provider is the name this generator is registered under
	provider string

	// structureModel and contentModel are used when a phase does not name a model
	structureModel string
	contentModel   string

	temperature     float32
	maxOutputTokens int32
	callTimeout     time.Duration
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator backed by the Gemini API.
//
// Parameters:
//   - ctx: Context for client initialization
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing the API key, models and call settings
//
// Returns:
//   - A properly initialized GeminiGenerator or an error if initialization fails
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	return newClientGenerator(ctx, logger, cfg, ProviderGemini, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// NewVertexGenerator creates a generator backed by Vertex AI. Credentials
// come from the environment (application default credentials).
func NewVertexGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if cfg.VertexProject == "" || cfg.VertexLocation == "" {
		return nil, fmt.Errorf("%w: vertex project and location are required", generation.ErrInvalidConfig)
	}
	return newClientGenerator(ctx, logger, cfg, ProviderVertex, &genai.ClientConfig{
		Project:  cfg.VertexProject,
		Location: cfg.VertexLocation,
		Backend:  genai.BackendVertexAI,
	})
}

func newClientGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
	provider string,
	clientConfig *genai.ClientConfig,
) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s client: %v", generation.ErrInvalidConfig, provider, err)
	}
	return newGenerator(logger, cfg, provider, client.Models)
}

func newGenerator(
	logger *slog.Logger,
	cfg config.LLMConfig,
	provider string,
	models contentModels,
) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if models == nil {
		return nil, errors.New("models cannot be nil")
	}
	if cfg.CallTimeout <= 0 {
		return nil, fmt.Errorf("%w: call timeout must be positive", generation.ErrInvalidConfig)
	}

	return &GeminiGenerator{
		logger:          logger.With("component", "llm_generator", "provider", provider),
		models:          models,
		provider:        provider,
		structureModel:  cfg.StructureModel,
		contentModel:    cfg.ContentModel,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		callTimeout:     cfg.CallTimeout,
	}, nil
}

// NewGenerators builds a generator for every backend the configuration
// enables, keyed by provider name.
func NewGenerators(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (map[string]generation.Generator, error) {
	generators := make(map[string]generation.Generator, 2)

	if cfg.GeminiAPIKey != "" {
		g, err := NewGeminiGenerator(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		generators[ProviderGemini] = g
	}

	if cfg.VertexProject != "" {
		g, err := NewVertexGenerator(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		generators[ProviderVertex] = g
	}

	if len(generators) == 0 {
		return nil, fmt.Errorf("%w: no LLM backend configured", generation.ErrInvalidConfig)
	}
	return generators, nil
}

// NewRouter builds the enabled generators and registers them with a
// generation.Router using the configured default provider.
func NewRouter(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*generation.Router, error) {
	generators, err := NewGenerators(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	return generation.NewRouter(cfg.DefaultProvider, generators)
}

// GenerateStructure implements generation.StructureGenerator.
func (g *GeminiGenerator) GenerateStructure(
	ctx context.Context,
	topic string,
	cfg generation.PhaseConfig,
) (string, error) {
	prompt, err := structurePrompt(topic, cfg.Prompt)
	if err != nil {
		return "", err
	}
	return g.generate(ctx, pickModel(cfg.Model, g.structureModel), prompt)
}

// GenerateContent implements generation.ContentGenerator.
func (g *GeminiGenerator) GenerateContent(
	ctx context.Context,
	topic, structure string,
	cfg generation.PhaseConfig,
) (string, error) {
	prompt, err := contentPrompt(topic, structure, cfg.Prompt)
	if err != nil {
		return "", err
	}
	return g.generate(ctx, pickModel(cfg.Model, g.contentModel), prompt)
}

func pickModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

// generate makes a single bounded model call and extracts its text.
func (g *GeminiGenerator) generate(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("%w: no model selected", generation.ErrInvalidConfig)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxOutputTokens,
	}

	start := time.Now()
	g.logger.DebugContext(ctx, "making model call",
		"model", model,
		"prompt_length", len(prompt))

	resp, err := g.models.GenerateContent(callCtx, model, genai.Text(prompt), genConfig)
	if err != nil {
		mapped := mapAPIError(err)
		g.logger.WarnContext(ctx, "model call failed",
			"model", model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", mapped)
		return "", mapped
	}

	text, err := extractText(resp)
	if err != nil {
		g.logger.WarnContext(ctx, "model response rejected",
			"model", model,
			"error", err)
		return "", err
	}

	g.logger.InfoContext(ctx, "model call succeeded",
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"output_length", len(text))
	return text, nil
}

// extractText returns the concatenated text of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates in response", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: response contains no text", generation.ErrInvalidResponse)
	}
	return text, nil
}

func structurePrompt(topic, instructions string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", ErrEmptyTopic
	}
	return renderPrompt("structure.tmpl", promptData{
		Topic:        topic,
		Instructions: strings.TrimSpace(instructions),
	})
}

func contentPrompt(topic, structure, instructions string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", ErrEmptyTopic
	}
	if strings.TrimSpace(structure) == "" {
		return "", ErrEmptyStructure
	}
	return renderPrompt("content.tmpl", promptData{
		Topic:        topic,
		Structure:    strings.TrimSpace(structure),
		Instructions: strings.TrimSpace(instructions),
	})
}

func renderPrompt(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}
