// Package captions turns time-stamped ASR words into emotion-tagged captions.
//
// Words are grouped into sentences by pause gaps and length, sentences are
// grouped into chunks by semantic similarity, and every chunk becomes one
// caption labelled with an emotion. Embedding and classification are
// optional capabilities; every stage has a deterministic fallback.
package captions

import (
	"fmt"
	"strings"
)

// Word is a single recognized word with its time span in seconds.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewWord validates and builds a Word.
func NewWord(text string, start, end float64) (Word, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Word{}, fmt.Errorf("word text is empty")
	}
	if start < 0 {
		return Word{}, fmt.Errorf("word %q: start %.3f is negative", text, start)
	}
	if end < start {
		return Word{}, fmt.Errorf("word %q: end %.3f before start %.3f", text, end, start)
	}
	return Word{Text: text, Start: start, End: end}, nil
}

// Sentence is a run of consecutive words.
type Sentence struct {
	Words []Word  `json:"words"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func newSentence(words []Word) Sentence {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	return Sentence{
		Words: words,
		Text:  strings.Join(texts, " "),
		Start: words[0].Start,
		End:   words[len(words)-1].End,
	}
}

// Chunk is a contiguous run of sentences that becomes one caption.
type Chunk struct {
	Sentences []Sentence
}

// Text joins the sentence texts with spaces.
func (c Chunk) Text() string {
	texts := make([]string, len(c.Sentences))
	for i, s := range c.Sentences {
		texts[i] = s.Text
	}
	return strings.Join(texts, " ")
}

func (c Chunk) Start() float64 { return c.Sentences[0].Start }

func (c Chunk) End() float64 { return c.Sentences[len(c.Sentences)-1].End }

// Emotion is the closed set of caption emotions.
type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
)

// Valid reports whether e is one of the known emotions.
func (e Emotion) Valid() bool {
	switch e {
	case EmotionNeutral, EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprised:
		return true
	}
	return false
}

// ParseEmotion returns the emotion named by s, or neutral when s is empty or unknown.
func ParseEmotion(s string) Emotion {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if e.Valid() {
		return e
	}
	return EmotionNeutral
}

// Caption is one rendered subtitle segment.
type Caption struct {
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Text          string  `json:"text"`
	Emotion       Emotion `json:"emotion"`
	ChunkID       int     `json:"chunk_id"`
	SentenceCount int     `json:"sentence_count"`
}

// Duration returns End - Start.
func (c Caption) Duration() float64 { return c.End - c.Start }
