package captions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Label is a raw classifier prediction.
type Label struct {
	Name  string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier predicts an emotion label for a piece of text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Label, error)
}

var errUnrecognizedLabel = errors.New("unrecognized label")

// labelEmotions maps classifier labels onto the caption emotions.
var labelEmotions = map[string]Emotion{
	"joy":       EmotionHappy,
	"happiness": EmotionHappy,
	"sadness":   EmotionSad,
	"fear":      EmotionSad,
	"anger":     EmotionAngry,
	"disgust":   EmotionAngry,
	"surprise":  EmotionSurprised,
	"neutral":   EmotionNeutral,
}

// MapLabel maps a raw classifier label to an Emotion. ok is false for
// labels outside the mapping table.
func MapLabel(label string) (Emotion, bool) {
	e, ok := labelEmotions[strings.ToLower(strings.TrimSpace(label))]
	return e, ok
}

type keywordSet struct {
	emotion  Emotion
	keywords []string
}

// Checked in order; the first set with a match wins.
var keywordSets = []keywordSet{
	{EmotionHappy, []string{"happy", "joy", "laugh", "smile", "great", "amazing", "love"}},
	{EmotionSad, []string{"sad", "cry", "tears", "terrible", "awful", "bad"}},
	{EmotionAngry, []string{"angry", "mad", "rage", "hate", "furious"}},
	{EmotionSurprised, []string{"wow", "surprise", "shocked", "amazing", "incredible"}},
}

// ClassifyKeywords labels text by case-insensitive keyword substrings.
func ClassifyKeywords(text string) Emotion {
	t := strings.ToLower(text)
	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if strings.Contains(t, kw) {
				return set.emotion
			}
		}
	}
	return EmotionNeutral
}

// ClassifyEmotion labels text using classifier when advanced is set, falling
// back to ClassifyKeywords on any classifier failure or unrecognized label.
func ClassifyEmotion(ctx context.Context, text string, advanced bool, classifier Classifier, logger *slog.Logger) Emotion {
	if !advanced || classifier == nil {
		return ClassifyKeywords(text)
	}

	emotion, label, err := classifyAdvanced(ctx, text, classifier)
	if err != nil {
		if logger != nil {
			capErr := &CapabilityError{Capability: "emotion", Err: err}
			logger.Warn("emotion classification failed, using keywords",
				"capability", capErr.Capability,
				"error", capErr.Err,
			)
		}
		return ClassifyKeywords(text)
	}

	if logger != nil && emotion != EmotionNeutral {
		logger.Debug("emotion classified",
			"text", truncateRunes(text, 40),
			"label", label.Name,
			"emotion", emotion,
			"score", label.Score,
		)
	}
	return emotion
}

func classifyAdvanced(ctx context.Context, text string, classifier Classifier) (_ Emotion, _ Label, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	label, err := classifier.Classify(ctx, truncateRunes(text, MaxClassifierChars))
	if err != nil {
		return "", label, err
	}
	emotion, ok := MapLabel(label.Name)
	if !ok {
		return "", label, fmt.Errorf("%w %q", errUnrecognizedLabel, label.Name)
	}
	return emotion, label, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
