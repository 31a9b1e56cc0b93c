// Package llm wraps the generation backend behind the single shape the
// inspector core needs: generate(prompts, stop_phrases, params) -> outputs.
package llm

import (
	"context"
	"errors"
)

// ErrBackendUnavailable is returned after the bounded retry loop exhausts
// its attempts on connection failures. Callers surface it distinctly from
// other backend errors.
var ErrBackendUnavailable = errors.New("could not connect to the generation backend")

// Params tune one generation request. Zero values leave the backend default
// in place.
type Params struct {
	Temperature     float32 `json:"temperature,omitempty"`
	TopP            float32 `json:"top_p,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
	RandomSeedToUse *int    `json:"random_seed,omitempty"`
}

// Generation is one backend output.
type Generation struct {
	Generation string `json:"generation"`
	Model      string `json:"model,omitempty"`
}

// Client is the opaque generation collaborator.
type Client interface {
	Generate(ctx context.Context, prompts []string, stopPhrases []string, params Params) ([]Generation, error)
}
