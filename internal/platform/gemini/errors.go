package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/scry-curriculum/internal/generation"
	"google.golang.org/genai"
)

// Error definitions for the gemini package.
var (
	// ErrEmptyTopic is returned when a prompt is requested for an empty topic.
	ErrEmptyTopic = errors.New("topic cannot be empty")

	// ErrEmptyStructure is returned when content is requested without an outline.
	ErrEmptyStructure = errors.New("structure cannot be empty")
)

// mapAPIError classifies a failed GenerateContent call. Rate limits, server
// errors and timeouts are transient; rejected requests are permanent
// generation failures. The original error is always kept in the chain.
func mapAPIError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", generation.ErrInvalidConfig, err)
	case code != 0:
		return fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}

	// Errors without a status code come from the transport.
	return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
}
