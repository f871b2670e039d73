package captions

import (
	"context"
	"log/slog"
)

// Assembler runs segmentation, chunking and emotion classification.
type Assembler struct {
	opts       Options
	scorer     Scorer
	classifier Classifier
	logger     *slog.Logger
}

// NewAssembler validates opts and returns an Assembler. scorer and
// classifier may be nil, in which case the fallbacks are used.
func NewAssembler(opts Options, scorer Scorer, classifier Classifier, logger *slog.Logger) (*Assembler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Assembler{
		opts:       opts,
		scorer:     scorer,
		classifier: classifier,
		logger:     logger,
	}, nil
}

func (a *Assembler) Options() Options { return a.opts }

// EmotionMethod names the emotion strategy in effect.
func (a *Assembler) EmotionMethod() string {
	if a.opts.AdvancedEmotions && a.classifier != nil {
		return "model"
	}
	return "keyword"
}

// ChunkingMethod names the configured chunking strategy. A run that falls
// back reports its actual method in Result.ChunkingMethod.
func (a *Assembler) ChunkingMethod() string {
	if a.opts.SemanticChunking && a.scorer != nil {
		return ChunkingSemantic
	}
	return ChunkingBasic
}

// Result is the output of one assembly run.
type Result struct {
	Captions       []Caption
	ChunkingMethod string
	EmotionMethod  string
}

// Assemble converts words into captions. Empty input yields no captions.
func (a *Assembler) Assemble(ctx context.Context, words []Word) []Caption {
	return a.Run(ctx, words).Captions
}

// Run is Assemble plus the methods actually used for this input.
func (a *Assembler) Run(ctx context.Context, words []Word) Result {
	res := Result{ChunkingMethod: a.ChunkingMethod(), EmotionMethod: a.EmotionMethod()}
	if len(words) == 0 {
		if a.logger != nil {
			a.logger.Warn("no words to process")
		}
		return res
	}

	sentences := SegmentWithOptions(words, a.opts)
	chunks, method := ChunkSentences(ctx, sentences, a.opts, a.scorer, a.logger)
	res.ChunkingMethod = method

	captions := make([]Caption, len(chunks))
	for i, chunk := range chunks {
		text := chunk.Text()
		captions[i] = Caption{
			Start:         chunk.Start(),
			End:           chunk.End(),
			Text:          text,
			Emotion:       ClassifyEmotion(ctx, text, a.opts.AdvancedEmotions, a.classifier, a.logger),
			ChunkID:       i,
			SentenceCount: len(chunk.Sentences),
		}
	}

	if a.logger != nil {
		a.logger.Info("captions assembled",
			"words", len(words),
			"sentences", len(sentences),
			"captions", len(captions),
			"chunking", res.ChunkingMethod,
			"emotions", res.EmotionMethod,
		)
	}
	res.Captions = captions
	return res
}
