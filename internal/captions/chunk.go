package captions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Scorer embeds sentence texts. Implementations return one vector per text,
// in input order.
type Scorer interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// SimilarityScorer is a Scorer that also supplies its own similarity
// function. Scorers that do not implement it are compared with Cosine.
type SimilarityScorer interface {
	Scorer
	Similarity(a, b []float64) (float64, error)
}

// Cosine returns the cosine similarity of a and b. A zero vector has
// similarity 0 with everything.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("cosine: dimension mismatch (%d vs %d)", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0, errors.New("cosine: similarity is NaN")
	}
	return sim, nil
}

// Chunking methods.
const (
	ChunkingSemantic = "semantic"
	ChunkingBasic    = "basic"
)

// ChunkSentences groups sentences into chunks of semantically similar
// neighbours and reports the method that produced them.
//
// Each sentence is compared with the sentence immediately before it. It joins
// the open chunk when the similarity exceeds opts.SimilarityThreshold and the
// chunk holds fewer than opts.MaxSentencesPerChunk sentences.
//
// With chunking disabled, no scorer, a single sentence, or any scoring
// failure, every sentence becomes its own chunk and the method is
// ChunkingBasic. A single sentence with a working setup stays semantic.
func ChunkSentences(ctx context.Context, sentences []Sentence, opts Options, scorer Scorer, logger *slog.Logger) ([]Chunk, string) {
	if len(sentences) == 0 || !opts.SemanticChunking || scorer == nil {
		return identityChunks(sentences), ChunkingBasic
	}
	if len(sentences) == 1 {
		return identityChunks(sentences), ChunkingSemantic
	}

	chunks, err := semanticChunks(ctx, sentences, opts, scorer)
	if err != nil {
		if logger != nil {
			capErr := &CapabilityError{Capability: "embedding", Err: err}
			logger.Warn("semantic chunking failed, using sentence-level chunks",
				"capability", capErr.Capability,
				"sentences", len(sentences),
				"error", capErr.Err,
			)
		}
		return identityChunks(sentences), ChunkingBasic
	}

	if logger != nil {
		logger.Debug("semantic chunking complete", "sentences", len(sentences), "chunks", len(chunks))
	}
	return chunks, ChunkingSemantic
}

func semanticChunks(ctx context.Context, sentences []Sentence, opts Options, scorer Scorer) (_ []Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer panic: %v", r)
		}
	}()

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}

	embeddings, err := scorer.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(sentences) {
		return nil, fmt.Errorf("scorer returned %d embeddings for %d sentences", len(embeddings), len(sentences))
	}

	similarity := Cosine
	if ss, ok := scorer.(SimilarityScorer); ok {
		similarity = ss.Similarity
	}

	maxPerChunk := opts.MaxSentencesPerChunk
	if maxPerChunk < 1 {
		maxPerChunk = 1
	}

	var chunks []Chunk
	current := []Sentence{sentences[0]}
	for i := 1; i < len(sentences); i++ {
		sim, err := similarity(embeddings[i-1], embeddings[i])
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		if sim > opts.SimilarityThreshold && len(current) < maxPerChunk {
			current = append(current, sentences[i])
			continue
		}
		chunks = append(chunks, Chunk{Sentences: current})
		current = []Sentence{sentences[i]}
	}
	chunks = append(chunks, Chunk{Sentences: current})
	return chunks, nil
}

func identityChunks(sentences []Sentence) []Chunk {
	if len(sentences) == 0 {
		return nil
	}
	chunks := make([]Chunk, len(sentences))
	for i, s := range sentences {
		chunks[i] = Chunk{Sentences: []Sentence{s}}
	}
	return chunks
}
