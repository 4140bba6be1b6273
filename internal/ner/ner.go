// Package ner defines the named-entity recognizer interface this engine
// calls through. NER itself is an external collaborator per the core
// specification; this package also ships a deterministic, pattern-based
// implementation so the engine is runnable without a model dependency.
package ner

import (
	"context"

	"github.com/tarunchinta/epsteinai/internal/model"
)

// Span is one typed entity occurrence recognized in a text.
type Span struct {
	Text  string
	Type  model.EntityType
	Start int
	End   int
}

// Recognizer extracts typed entity spans from text. Implementations may
// wrap an ML model, an external service, or (as here) a pattern-based
// fallback. Extract must be safe for concurrent use across goroutines.
type Recognizer interface {
	Extract(ctx context.Context, text string) ([]Span, error)
}
