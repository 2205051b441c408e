package generation

import (
	"context"
	"fmt"
	"sort"
)

// Router is a Generator that forwards each call to the generator registered
// under PhaseConfig.Provider. Calls with an empty provider go to the default.
type Router struct {
	defaultProvider string
	generators      map[string]Generator
}

// NewRouter creates a Router. The default provider must be present in
// generators.
func NewRouter(defaultProvider string, generators map[string]Generator) (*Router, error) {
	if len(generators) == 0 {
		return nil, fmt.Errorf("%w: no generators registered", ErrInvalidConfig)
	}
	if _, ok := generators[defaultProvider]; !ok {
		return nil, fmt.Errorf("%w: default provider %q is not registered", ErrInvalidConfig, defaultProvider)
	}

	copied := make(map[string]Generator, len(generators))
	for name, g := range generators {
		copied[name] = g
	}

	return &Router{
		defaultProvider: defaultProvider,
		generators:      copied,
	}, nil
}

// Providers returns the registered provider names in sorted order.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the provider (or the default, for an empty name) is registered.
func (r *Router) Has(provider string) bool {
	_, err := r.resolve(provider)
	return err == nil
}

func (r *Router) resolve(provider string) (Generator, error) {
	if provider == "" {
		provider = r.defaultProvider
	}
	g, ok := r.generators[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return g, nil
}

// GenerateStructure implements StructureGenerator.
func (r *Router) GenerateStructure(ctx context.Context, topic string, cfg PhaseConfig) (string, error) {
	g, err := r.resolve(cfg.Provider)
	if err != nil {
		return "", err
	}
	return g.GenerateStructure(ctx, topic, cfg)
}

// GenerateContent implements ContentGenerator.
func (r *Router) GenerateContent(ctx context.Context, topic, structure string, cfg PhaseConfig) (string, error) {
	g, err := r.resolve(cfg.Provider)
	if err != nil {
		return "", err
	}
	return g.GenerateContent(ctx, topic, structure, cfg)
}
