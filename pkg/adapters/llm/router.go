// Package llm routes completion requests to the provider named by the AI node.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/parley/pkg/ports"
)

// Provider names understood by the Router.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrUnknownProvider is returned for requests naming a provider that was not registered.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Router implements ports.Completer by dispatching on CompletionRequest.Provider.
type Router struct {
	providers map[string]ports.Completer
	fallback  string
}

// NewRouter creates a Router. Requests without a provider go to defaultProvider.
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers: make(map[string]ports.Completer),
		fallback:  strings.ToLower(defaultProvider),
	}
}

// Register adds or replaces a provider. Nil completers are ignored so callers
// can register providers whose credentials are missing.
func (r *Router) Register(name string, c ports.Completer) *Router {
	if c != nil {
		r.providers[strings.ToLower(name)] = c
	}
	return r
}

// Providers returns the registered provider names, sorted.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Complete forwards req to its provider.
func (r *Router) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	name := strings.ToLower(req.Provider)
	if name == "" {
		name = r.fallback
	}
	c, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return c.Complete(ctx, req)
}
