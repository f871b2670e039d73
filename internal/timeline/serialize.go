package timeline

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

const (
	DefaultWidth    = 1280
	DefaultHeight   = 720
	DefaultFPS      = 30.0
	DefaultFont     = "Arial"
	DefaultFontSize = 36
	DefaultColor    = "#FFFFFF"

	generatorName = "heimdex-captions"

	// Caption fade in/out, microseconds.
	fadeDuration = 200_000
)

// Options controls presentation fields of a serialized timeline. Zero
// values select the defaults.
type Options struct {
	Width             int
	Height            int
	FPS               float64
	Font              string
	FontSize          float64
	TextColor         string
	ChunkingMethod    string
	EmotionClassifier string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.Font == "" {
		o.Font = DefaultFont
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultFontSize
	}
	if o.TextColor == "" {
		o.TextColor = DefaultColor
	}
	return o
}

// Micros converts seconds to integer microseconds, rounding to nearest.
func Micros(seconds float64) int64 {
	return int64(math.Round(seconds * 1_000_000))
}

// Seconds converts microseconds to seconds.
func Seconds(us int64) float64 {
	return float64(us) / 1_000_000
}

func newID() string {
	return strings.ToUpper(uuid.NewString())
}

// Serialize builds a nested timeline from captions. audioRef is required;
// videoRef may be empty. Both are stored as given, normally relative to the
// project directory. Every id is freshly generated.
func Serialize(caps []captions.Caption, audioRef, videoRef, title string, opts Options) *Timeline {
	opts = opts.withDefaults()

	var duration int64
	if len(caps) > 0 {
		duration = Micros(caps[len(caps)-1].End)
	}

	t := &Timeline{
		ID:       newID(),
		Name:     title,
		Version:  SchemaVersion,
		Duration: duration,
		FPS:      opts.FPS,
		Canvas: Canvas{
			Width:  opts.Width,
			Height: opts.Height,
			Ratio:  "original",
		},
		Materials: Materials{
			Audios: []MediaMaterial{},
			Videos: []MediaMaterial{},
			Texts:  make([]TextMaterial, 0, len(caps)),
		},
		Metadata: Metadata{
			ChunkingMethod:    opts.ChunkingMethod,
			EmotionClassifier: opts.EmotionClassifier,
			TotalChunks:       len(caps),
			TotalDuration:     Seconds(duration),
			HasOriginalVideo:  videoRef != "",
			Generator:         generatorName,
		},
	}

	audio := MediaMaterial{ID: newID(), Type: KindAudio, Path: filepath.ToSlash(audioRef), Name: filepath.Base(audioRef)}
	t.Materials.Audios = append(t.Materials.Audios, audio)
	t.Tracks = append(t.Tracks, mediaTrack(KindAudio, audio.ID, duration))

	if videoRef != "" {
		video := MediaMaterial{ID: newID(), Type: KindVideo, Path: filepath.ToSlash(videoRef), Name: filepath.Base(videoRef)}
		t.Materials.Videos = append(t.Materials.Videos, video)
		t.Tracks = append(t.Tracks, mediaTrack(KindVideo, video.ID, duration))
	}

	text := Track{ID: newID(), Type: KindText, Segments: make([]Segment, 0, len(caps))}
	for _, c := range caps {
		material := TextMaterial{
			ID:        newID(),
			Type:      KindText,
			Content:   c.Text,
			FontSize:  opts.FontSize,
			TextColor: opts.TextColor,
		}
		t.Materials.Texts = append(t.Materials.Texts, material)

		start := Micros(c.Start)
		chunkID := c.ChunkID
		sentenceCount := c.SentenceCount
		text.Segments = append(text.Segments, Segment{
			ID:         newID(),
			MaterialID: material.ID,
			TargetTimerange: Timerange{
				Start:    start,
				Duration: Micros(c.End) - start,
			},
			Content:  c.Text,
			Font:     opts.Font,
			Position: &Position{X: 0, Y: -0.8},
			Animations: []Animation{
				{Type: "fade_in", Duration: fadeDuration},
				{Type: "fade_out", Duration: fadeDuration},
			},
			Metadata: &SegmentMetadata{
				Emotion:       string(c.Emotion),
				ChunkID:       &chunkID,
				SentenceCount: &sentenceCount,
			},
		})
	}
	t.Tracks = append(t.Tracks, text)

	return t
}

func mediaTrack(kind Kind, materialID string, duration int64) Track {
	volume := 1.0
	seg := Segment{
		ID:              newID(),
		MaterialID:      materialID,
		TargetTimerange: Timerange{Start: 0, Duration: duration},
	}
	if kind == KindAudio {
		seg.Volume = &volume
	}
	return Track{ID: newID(), Type: kind, Segments: []Segment{seg}}
}
