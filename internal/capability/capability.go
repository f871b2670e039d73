// Package capability provides the optional embedding and emotion models used
// by caption assembly. Backends are opened lazily, at most once, and a
// failed open degrades assembly to its heuristic fallbacks.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/logging"
)

// Providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"
	ProviderPython = "python"
)

// Providers lists the accepted provider names.
var Providers = []string{ProviderNone, ProviderOpenAI, ProviderHTTP, ProviderPython}

// Settings selects and configures one provider.
type Settings struct {
	Provider string
	Timeout  time.Duration

	OpenAI OpenAIConfig

	EmbeddingURL string
	EmotionURL   string

	Python PythonConfig

	Logger *slog.Logger
}

// Set is the pair of capabilities handed to caption assembly.
type Set struct {
	provider   string
	embeddings *Embeddings
	emotions   *Emotions
	lifecycles []Lifecycle
}

// New builds the capabilities for s.Provider. Nothing is opened until first
// use or Init.
func New(s Settings) (*Set, error) {
	logger := logging.OrDiscard(s.Logger)
	set := &Set{provider: s.Provider}

	switch s.Provider {
	case "", ProviderNone:
		set.provider = ProviderNone
		return set, nil

	case ProviderOpenAI:
		embed := NewModel("openai-embedding", func(ctx context.Context) (captions.Scorer, error) {
			return NewOpenAIEmbedder(s.OpenAI)
		}, nil, logger)
		emo := NewModel("openai-emotion", func(ctx context.Context) (captions.Classifier, error) {
			return NewOpenAIClassifier(s.OpenAI)
		}, nil, logger)
		set.add(embed, emo, s.Timeout)

	case ProviderHTTP:
		client := NewHTTPClient(s.EmbeddingURL, s.EmotionURL, s.Timeout)
		embed := NewModel("http-embedding", func(ctx context.Context) (captions.Scorer, error) {
			if s.EmbeddingURL == "" {
				return nil, errors.New("embedding url not configured")
			}
			return client, nil
		}, nil, logger)
		emo := NewModel("http-emotion", func(ctx context.Context) (captions.Classifier, error) {
			if s.EmotionURL == "" {
				return nil, errors.New("emotion url not configured")
			}
			return client, nil
		}, nil, logger)
		set.add(embed, emo, s.Timeout)

	case ProviderPython:
		pyCfg := s.Python
		if pyCfg.Logger == nil {
			pyCfg.Logger = logger
		}
		python := NewModel("python", func(ctx context.Context) (*PythonModels, error) {
			return NewPythonModels(ctx, pyCfg)
		}, nil, logger)
		embed := NewModel("python-embedding", func(ctx context.Context) (captions.Scorer, error) {
			p, err := python.Get(ctx)
			if err != nil {
				return nil, err
			}
			if !p.Report().HasEmbedding() {
				return nil, errors.New("python module reports no embedding model")
			}
			return p, nil
		}, nil, logger)
		emo := NewModel("python-emotion", func(ctx context.Context) (captions.Classifier, error) {
			p, err := python.Get(ctx)
			if err != nil {
				return nil, err
			}
			if !p.Report().HasEmotion() {
				return nil, errors.New("python module reports no emotion model")
			}
			return p, nil
		}, nil, logger)
		set.lifecycles = append(set.lifecycles, python)
		set.add(embed, emo, s.Timeout)

	default:
		return nil, fmt.Errorf("unknown capability provider %q", s.Provider)
	}

	return set, nil
}

func (s *Set) add(embed *Model[captions.Scorer], emo *Model[captions.Classifier], timeout time.Duration) {
	s.embeddings = NewEmbeddings(embed, timeout)
	s.emotions = NewEmotions(emo, timeout)
	s.lifecycles = append(s.lifecycles, embed, emo)
}

// Provider returns the configured provider name.
func (s *Set) Provider() string { return s.provider }

// Scorer returns the embedding capability, or nil when none is configured.
func (s *Set) Scorer() captions.Scorer {
	if s == nil || s.embeddings == nil {
		return nil
	}
	return s.embeddings
}

// Classifier returns the emotion capability, or nil when none is configured.
func (s *Set) Classifier() captions.Classifier {
	if s == nil || s.emotions == nil {
		return nil
	}
	return s.emotions
}

// Init opens every backend now instead of on first use. Failures are
// returned joined; the failed capabilities stay unavailable.
func (s *Set) Init(ctx context.Context) error {
	var errs []error
	for _, l := range s.lifecycles {
		if err := l.Init(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases every backend.
func (s *Set) Close() error {
	var errs []error
	for i := len(s.lifecycles) - 1; i >= 0; i-- {
		if err := s.lifecycles[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status reports every backend's lifecycle state.
func (s *Set) Status() []Status {
	out := make([]Status, 0, len(s.lifecycles))
	for _, l := range s.lifecycles {
		out = append(out, l.Status())
	}
	return out
}
