// Package timeline builds and reads project timeline documents.
//
// Two document generations exist on disk. The nested generation stores
// materials and tracks of segments timed in microseconds; the legacy
// generation stores a flat caption array timed in seconds. Only the nested
// generation is written, both are read.
package timeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DocumentFile is the document filename inside a project directory.
const DocumentFile = "draft_content.json"

// SchemaVersion is written into every nested document.
const SchemaVersion = 2

type Generation int

const (
	GenerationLegacy Generation = 1
	GenerationNested Generation = 2
)

func (g Generation) String() string {
	switch g {
	case GenerationLegacy:
		return "legacy"
	case GenerationNested:
		return "nested"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
	KindText  Kind = "text"
)

// Timeline is the nested document generation.
type Timeline struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Duration  int64     `json:"duration"`
	FPS       float64   `json:"fps"`
	Canvas    Canvas    `json:"canvas_config"`
	Materials Materials `json:"materials"`
	Tracks    []Track   `json:"tracks"`
	Metadata  Metadata  `json:"metadata"`
}

type Canvas struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Ratio  string `json:"ratio"`
}

type Materials struct {
	Audios []MediaMaterial `json:"audios"`
	Videos []MediaMaterial `json:"videos"`
	Texts  []TextMaterial  `json:"texts"`
}

// MediaMaterial references an audio or video file relative to the project directory.
type MediaMaterial struct {
	ID   string `json:"id"`
	Type Kind   `json:"type"`
	Path string `json:"path"`
	Name string `json:"name"`
}

type TextMaterial struct {
	ID        string  `json:"id"`
	Type      Kind    `json:"type"`
	Content   string  `json:"content"`
	FontSize  float64 `json:"font_size"`
	TextColor string  `json:"text_color"`
}

type Track struct {
	ID       string    `json:"id"`
	Type     Kind      `json:"type"`
	Segments []Segment `json:"segments"`
}

// Timerange is a start and duration in microseconds.
type Timerange struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

type Segment struct {
	ID              string    `json:"id"`
	MaterialID      string    `json:"material_id"`
	TargetTimerange Timerange `json:"target_timerange"`

	// audio and video
	Volume *float64 `json:"volume,omitempty"`

	// text
	Content    string           `json:"content,omitempty"`
	Font       string           `json:"font,omitempty"`
	Position   *Position        `json:"position,omitempty"`
	Animations []Animation      `json:"animations,omitempty"`
	Metadata   *SegmentMetadata `json:"metadata,omitempty"`
}

// Position is normalised to the canvas, [-1, 1] on both axes.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Animation struct {
	Type     string `json:"type"`
	Duration int64  `json:"duration"`
}

// SegmentMetadata carries caption attributes that do not affect timing.
type SegmentMetadata struct {
	Emotion       string `json:"emotion,omitempty"`
	ChunkID       *int   `json:"chunk_id,omitempty"`
	SentenceCount *int   `json:"sentence_count,omitempty"`
}

type Metadata struct {
	ChunkingMethod    string  `json:"chunking_method,omitempty"`
	EmotionClassifier string  `json:"emotion_classifier,omitempty"`
	TotalChunks       int     `json:"total_chunks"`
	TotalDuration     float64 `json:"total_duration"`
	HasOriginalVideo  bool    `json:"has_original_video"`
	Generator         string  `json:"generator,omitempty"`
}

// LegacyDocument is the flat document generation.
type LegacyDocument struct {
	ProjectID   string          `json:"project_id"`
	ProjectName string          `json:"project_name"`
	Audio       string          `json:"audio"`
	Video       string          `json:"video,omitempty"`
	Captions    []LegacyCaption `json:"captions"`
	Metadata    *LegacyMetadata `json:"metadata,omitempty"`
}

type LegacyCaption struct {
	ID            string  `json:"id"`
	Index         int     `json:"index"`
	Text          string  `json:"text"`
	Start         float64 `json:"start"`
	Duration      float64 `json:"duration"`
	Emotion       string  `json:"emotion,omitempty"`
	ChunkID       *int    `json:"chunk_id,omitempty"`
	SentenceCount *int    `json:"sentence_count,omitempty"`
	SemanticChunk bool    `json:"semantic_chunk,omitempty"`
}

type LegacyMetadata struct {
	ChunkingMethod    string  `json:"chunking_method"`
	EmotionClassifier string  `json:"emotion_classifier"`
	TotalChunks       int     `json:"total_chunks"`
	TotalDuration     float64 `json:"total_duration"`
	HasOriginalVideo  bool    `json:"has_original_video"`
}

// Document holds exactly one decoded generation.
type Document struct {
	Generation Generation
	Nested     *Timeline
	Legacy     *LegacyDocument
}

// discriminant holds the keys that select a generation.
type discriminant struct {
	Tracks   json.RawMessage `json:"tracks"`
	Captions json.RawMessage `json:"captions"`
}

// Decode detects the document generation and decodes it. A document with a
// tracks key is nested, one with only a captions key is legacy; anything else
// is a *MalformedDocumentError.
func Decode(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Document{}, &MalformedDocumentError{Err: errors.New("document is not a JSON object")}
	}

	var d discriminant
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, &MalformedDocumentError{Err: err}
	}

	switch {
	case d.Tracks != nil:
		var t Timeline
		if err := json.Unmarshal(data, &t); err != nil {
			return Document{}, &MalformedDocumentError{Field: fieldOf(err), Err: err}
		}
		return Document{Generation: GenerationNested, Nested: &t}, nil
	case d.Captions != nil:
		var l LegacyDocument
		if err := json.Unmarshal(data, &l); err != nil {
			return Document{}, &MalformedDocumentError{Field: fieldOf(err), Err: err}
		}
		return Document{Generation: GenerationLegacy, Legacy: &l}, nil
	default:
		return Document{}, &MalformedDocumentError{Field: "tracks", Err: errors.New("neither tracks nor captions present")}
	}
}

// Encode renders a nested timeline as indented JSON.
func Encode(t *Timeline) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

func fieldOf(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Field
	}
	return ""
}
