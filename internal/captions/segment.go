package captions

// Segment groups words into sentences. A sentence ends after the last word,
// after a word followed by a pause longer than maxPauseGap, or once it holds
// maxWordsPerSentence words. Every word lands in exactly one sentence, in order.
func Segment(words []Word, maxPauseGap float64, maxWordsPerSentence int) []Sentence {
	if len(words) == 0 {
		return nil
	}
	if maxWordsPerSentence < 1 {
		maxWordsPerSentence = 1
	}

	sentences := make([]Sentence, 0, len(words)/maxWordsPerSentence+1)
	start := 0
	for i := range words {
		end := i == len(words)-1
		if !end && words[i+1].Start-words[i].End > maxPauseGap {
			end = true
		}
		if i-start+1 >= maxWordsPerSentence {
			end = true
		}
		if !end {
			continue
		}

		current := make([]Word, i-start+1)
		copy(current, words[start:i+1])
		sentences = append(sentences, newSentence(current))
		start = i + 1
	}
	return sentences
}

// SegmentWithOptions is Segment using the values from opts.
func SegmentWithOptions(words []Word, opts Options) []Sentence {
	return Segment(words, opts.MaxPauseGap, opts.MaxWordsPerSentence)
}
