package generation

import (
	"context"
)

// PhaseConfig selects the provider, model and custom prompt used for one
// generation phase of a run. An empty Provider means the default provider.
type PhaseConfig struct {
	Provider string `json:"provider,omitempty" toml:"provider" validate:"omitempty,max=64"`
	Model    string `json:"model"              toml:"model"    validate:"required,max=128"`
	Prompt   string `json:"prompt,omitempty"   toml:"prompt"   validate:"max=8000"`
}

// StructureGenerator drafts the outline of a topic (phase 1).
// This interface serves as a boundary between the curriculum engine and
// external AI/LLM services, following the hexagonal architecture pattern.
type StructureGenerator interface {
	// GenerateStructure returns an outline for the topic.
	//
	// Parameters:
	//   - ctx: Context for the operation, which can be used for cancellation
	//   - topic: The topic the outline is drafted for
	//   - cfg: Provider, model and custom prompt for the structure phase
	//
	// Returns:
	//   - The outline text
	//   - An error if the generation fails for any reason (see errors.go for specific types)
	GenerateStructure(ctx context.Context, topic string, cfg PhaseConfig) (string, error)
}

// ContentGenerator expands an outline into a full note (phase 2).
type ContentGenerator interface {
	// GenerateContent returns the note content for the topic, following the
	// given outline.
	GenerateContent(ctx context.Context, topic, structure string, cfg PhaseConfig) (string, error)
}

// Generator is implemented by providers that serve both phases.
type Generator interface {
	StructureGenerator
	ContentGenerator
}
