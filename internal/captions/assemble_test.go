package captions

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

func TestNewAssembler_InvalidOptions(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(*Options)
	}{
		{"negative gap", "max_pause_gap", func(o *Options) { o.MaxPauseGap = -1 }},
		{"zero words", "max_words_per_sentence", func(o *Options) { o.MaxWordsPerSentence = 0 }},
		{"threshold too high", "similarity_threshold", func(o *Options) { o.SimilarityThreshold = 1.5 }},
		{"zero sentences", "max_sentences_per_chunk", func(o *Options) { o.MaxSentencesPerChunk = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.edit(&opts)

			_, err := NewAssembler(opts, nil, nil, nil)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("NewAssembler() error = %v, want *ConfigurationError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("ConfigurationError.Field = %s, want %s", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestAssemble_Empty(t *testing.T) {
	a, err := NewAssembler(DefaultOptions(), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}
	if got := a.Assemble(context.Background(), nil); len(got) != 0 {
		t.Fatalf("Assemble(nil) = %d captions, want 0", len(got))
	}
}

func TestAssemble_BasicMode(t *testing.T) {
	a, err := NewAssembler(DefaultOptions(), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}

	words := []Word{
		w("what", 0.0, 0.3),
		w("a", 0.4, 0.5),
		w("great", 0.6, 1.0),
		w("day", 1.1, 1.5),
		w("I", 4.0, 4.2),
		w("hate", 4.3, 4.6),
		w("rain", 4.7, 5.0),
	}

	got := a.Assemble(context.Background(), words)
	want := []Caption{
		{Start: 0.0, End: 1.5, Text: "what a great day", Emotion: EmotionHappy, ChunkID: 0, SentenceCount: 1},
		{Start: 4.0, End: 5.0, Text: "I hate rain", Emotion: EmotionAngry, ChunkID: 1, SentenceCount: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("Assemble() = %d captions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("caption[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if a.ChunkingMethod() != "basic" || a.EmotionMethod() != "keyword" {
		t.Errorf("methods = %s/%s, want basic/keyword", a.ChunkingMethod(), a.EmotionMethod())
	}
}

func TestAssemble_MergesSemanticChunks(t *testing.T) {
	scorer := &fakeScorer{vectors: map[string][]float64{
		"hello there": {1, 0},
		"how are you": {1, 0.1},
	}}
	classifier := &fakeClassifier{label: Label{Name: "surprise", Score: 0.8}}

	a, err := NewAssembler(DefaultOptions(), scorer, classifier, nil)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}

	words := []Word{
		w("hello", 0, 0.4), w("there", 0.5, 0.9),
		w("how", 3.0, 3.2), w("are", 3.3, 3.4), w("you", 3.5, 3.9),
	}

	got := a.Assemble(context.Background(), words)
	if len(got) != 1 {
		t.Fatalf("Assemble() = %d captions, want 1", len(got))
	}
	c := got[0]
	if c.Text != "hello there how are you" {
		t.Errorf("Text = %q", c.Text)
	}
	if c.Start != 0 || c.End != 3.9 {
		t.Errorf("span = [%v, %v], want [0, 3.9]", c.Start, c.End)
	}
	if c.SentenceCount != 2 {
		t.Errorf("SentenceCount = %d, want 2", c.SentenceCount)
	}
	if c.Emotion != EmotionSurprised {
		t.Errorf("Emotion = %s, want surprised", c.Emotion)
	}
	if a.ChunkingMethod() != "semantic" || a.EmotionMethod() != "model" {
		t.Errorf("methods = %s/%s, want semantic/model", a.ChunkingMethod(), a.EmotionMethod())
	}
}

func TestRun_ReportsChunkingFallback(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("model unavailable")}
	a, err := NewAssembler(DefaultOptions(), scorer, nil, nil)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}

	words := []Word{
		w("hello", 0, 0.4), w("there", 0.5, 0.9),
		w("how", 3.0, 3.2), w("are", 3.3, 3.4), w("you", 3.5, 3.9),
	}

	res := a.Run(context.Background(), words)
	if len(res.Captions) != 2 {
		t.Fatalf("Run() = %d captions, want 2", len(res.Captions))
	}
	if res.ChunkingMethod != ChunkingBasic {
		t.Errorf("ChunkingMethod = %s, want basic after scorer failure", res.ChunkingMethod)
	}
	if a.ChunkingMethod() != ChunkingSemantic {
		t.Errorf("configured ChunkingMethod() = %s, want semantic", a.ChunkingMethod())
	}
	if res.EmotionMethod != "keyword" {
		t.Errorf("EmotionMethod = %s, want keyword", res.EmotionMethod)
	}
}

func TestAssemble_OrderingProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a, err := NewAssembler(DefaultOptions(), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}

	for trial := 0; trial < 100; trial++ {
		n := rng.Intn(80) + 1
		words := make([]Word, n)
		cursor := 0.0
		for i := range words {
			cursor += rng.Float64() * 2.5
			dur := rng.Float64() * 0.5
			words[i] = w("word", cursor, cursor+dur)
			cursor += dur
		}

		got := a.Assemble(context.Background(), words)
		if len(got) == 0 {
			t.Fatalf("trial %d: no captions for %d words", trial, n)
		}
		for i, c := range got {
			if c.ChunkID != i {
				t.Fatalf("trial %d: caption %d has chunk_id %d", trial, i, c.ChunkID)
			}
			if i > 0 && c.Start < got[i-1].Start {
				t.Fatalf("trial %d: caption %d starts before caption %d", trial, i, i-1)
			}
		}
		if got[0].Start != words[0].Start || got[len(got)-1].End != words[n-1].End {
			t.Fatalf("trial %d: caption span [%v, %v] != word span [%v, %v]",
				trial, got[0].Start, got[len(got)-1].End, words[0].Start, words[n-1].End)
		}
	}
}
