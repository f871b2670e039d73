package captions

import "math"

const (
	DefaultMaxPauseGap          = 1.5
	DefaultMaxWordsPerSentence  = 15
	DefaultSimilarityThreshold  = 0.7
	DefaultMaxSentencesPerChunk = 5

	// MaxClassifierChars bounds the text handed to an emotion classifier.
	MaxClassifierChars = 512
)

// Options tunes segmentation, chunking and classification.
type Options struct {
	MaxPauseGap          float64 `json:"max_pause_gap" yaml:"max_pause_gap"`
	MaxWordsPerSentence  int     `json:"max_words_per_sentence" yaml:"max_words_per_sentence"`
	SemanticChunking     bool    `json:"semantic_chunking" yaml:"semantic_chunking"`
	SimilarityThreshold  float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	MaxSentencesPerChunk int     `json:"max_sentences_per_chunk" yaml:"max_sentences_per_chunk"`
	AdvancedEmotions     bool    `json:"advanced_emotions" yaml:"advanced_emotions"`
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxPauseGap:          DefaultMaxPauseGap,
		MaxWordsPerSentence:  DefaultMaxWordsPerSentence,
		SemanticChunking:     true,
		SimilarityThreshold:  DefaultSimilarityThreshold,
		MaxSentencesPerChunk: DefaultMaxSentencesPerChunk,
		AdvancedEmotions:     true,
	}
}

// Validate returns a *ConfigurationError for the first invalid field.
func (o Options) Validate() error {
	if math.IsNaN(o.MaxPauseGap) || o.MaxPauseGap < 0 {
		return &ConfigurationError{Field: "max_pause_gap", Value: o.MaxPauseGap, Reason: "must be a non-negative number of seconds"}
	}
	if o.MaxWordsPerSentence < 1 {
		return &ConfigurationError{Field: "max_words_per_sentence", Value: o.MaxWordsPerSentence, Reason: "must be at least 1"}
	}
	if math.IsNaN(o.SimilarityThreshold) || o.SimilarityThreshold < -1 || o.SimilarityThreshold > 1 {
		return &ConfigurationError{Field: "similarity_threshold", Value: o.SimilarityThreshold, Reason: "must be between -1 and 1"}
	}
	if o.MaxSentencesPerChunk < 1 {
		return &ConfigurationError{Field: "max_sentences_per_chunk", Value: o.MaxSentencesPerChunk, Reason: "must be at least 1"}
	}
	return nil
}
