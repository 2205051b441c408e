package curriculum

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-curriculum/internal/generation"
)

var validate = validator.New()

// RunConfig is supplied once to StartProcessing and held unchanged until the
// run ends. Phase 1 may use a different provider or model than phase 2.
type RunConfig struct {
	Phase1      generation.PhaseConfig `json:"phase1"       toml:"phase1"`
	Phase2      generation.PhaseConfig `json:"phase2"       toml:"phase2"`
	AutoApprove bool                   `json:"auto_approve" toml:"auto_approve"`
}

// Validate checks the configuration, wrapping failures in ErrInvalidRunConfig.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRunConfig, err)
	}
	return nil
}
