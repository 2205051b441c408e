// Package gemini implements the generation interfaces with Google's genai
// client. It supports two backends, the Gemini API (API key) and Vertex AI
// (project, location and application default credentials), and registers
// each enabled backend under its provider name so a run can pick one per
// phase.
//
// Prompts are rendered from embedded text templates: one for drafting a
// topic outline and one for expanding an approved outline into a note. A
// run's custom prompt is appended to either as author instructions.
//
// Each request is a single model call bounded by the configured call
// timeout. Failures are classified into the generation package's errors:
// rate limits, server errors and timeouts become ErrTransientFailure,
// safety blocks become ErrContentBlocked and empty output becomes
// ErrInvalidResponse. Retrying is left to the caller.
package gemini
