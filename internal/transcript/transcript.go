// Package transcript reads word-level speech recognition output.
//
// Accepted input is a stream of one or more JSON values, each either an array
// of words or an object holding the words under "result" (Vosk recognizer
// output) or "words". A word carries its text under "word" or "text" and its
// timing in seconds under "start" and "end".
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

// FormatError reports input that is not a recognised transcript.
type FormatError struct {
	Path  string
	Index int // word index, -1 when the error is not about a word
	Err   error
}

func (e *FormatError) Error() string {
	prefix := "transcript"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Index >= 0 {
		return fmt.Sprintf("%s: word %d: %v", prefix, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type rawWord struct {
	Word  *string  `json:"word"`
	Text  *string  `json:"text"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type rawResult struct {
	Result []rawWord `json:"result"`
	Words  []rawWord `json:"words"`
}

// LoadFile reads the transcript at path.
func LoadFile(path string) ([]captions.Word, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	words, err := Read(f)
	var fe *FormatError
	if errors.As(err, &fe) {
		fe.Path = path
	}
	return words, err
}

// Read decodes every JSON value in r and returns the words ordered by start
// time. Words with equal start times keep their input order.
func Read(r io.Reader) ([]captions.Word, error) {
	dec := json.NewDecoder(r)
	var raws []rawWord
	for {
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &FormatError{Index: -1, Err: err}
		}
		batch, err := decodeValue(v)
		if err != nil {
			return nil, &FormatError{Index: -1, Err: err}
		}
		raws = append(raws, batch...)
	}

	words := make([]captions.Word, 0, len(raws))
	for i, rw := range raws {
		w, err := rw.toWord()
		if err != nil {
			return nil, &FormatError{Index: i, Err: err}
		}
		words = append(words, w)
	}

	sort.SliceStable(words, func(i, j int) bool { return words[i].Start < words[j].Start })
	return words, nil
}

func decodeValue(v json.RawMessage) ([]rawWord, error) {
	for _, c := range v {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var ws []rawWord
			if err := json.Unmarshal(v, &ws); err != nil {
				return nil, err
			}
			return ws, nil
		case '{':
			var res rawResult
			if err := json.Unmarshal(v, &res); err != nil {
				return nil, err
			}
			return append(res.Result, res.Words...), nil
		}
		break
	}
	return nil, errors.New("expected a JSON array or object")
}

func (rw rawWord) toWord() (captions.Word, error) {
	var text string
	switch {
	case rw.Word != nil:
		text = *rw.Word
	case rw.Text != nil:
		text = *rw.Text
	default:
		return captions.Word{}, errors.New(`missing "word"`)
	}
	if rw.Start == nil || rw.End == nil {
		return captions.Word{}, errors.New(`missing "start" or "end"`)
	}
	return captions.NewWord(text, *rw.Start, *rw.End)
}
