// Package config handles configuration loading, parsing, and validation
// from various sources (defaults, an optional config.yaml, and SCRY_
// environment variables). It provides type-safe access to the settings of the
// server, the database, authentication, the LLM backends and the curriculum
// engine while keeping configuration details separate from business logic.
package config
