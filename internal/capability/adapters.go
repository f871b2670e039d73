package capability

import (
	"context"
	"time"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

// Embeddings serves captions.Scorer from a lazily opened model.
type Embeddings struct {
	model   *Model[captions.Scorer]
	timeout time.Duration
}

// NewEmbeddings wraps model. A zero timeout leaves ctx unchanged.
func NewEmbeddings(model *Model[captions.Scorer], timeout time.Duration) *Embeddings {
	return &Embeddings{model: model, timeout: timeout}
}

func (e *Embeddings) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	backend, err := e.model.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Embed(ctx, texts)
}

// Emotions serves captions.Classifier from a lazily opened model.
type Emotions struct {
	model   *Model[captions.Classifier]
	timeout time.Duration
}

// NewEmotions wraps model. A zero timeout leaves ctx unchanged.
func NewEmotions(model *Model[captions.Classifier], timeout time.Duration) *Emotions {
	return &Emotions{model: model, timeout: timeout}
}

func (e *Emotions) Classify(ctx context.Context, text string) (captions.Label, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	backend, err := e.model.Get(ctx)
	if err != nil {
		return captions.Label{}, err
	}
	return backend.Classify(ctx, text)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
