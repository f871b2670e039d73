package timeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

// Loaded is a decoded document with media paths resolved.
type Loaded struct {
	Generation Generation
	ID         string
	Name       string
	AudioPath  string
	// VideoPath is empty when the document has no video or the file is missing.
	VideoPath string
	Captions  []captions.Caption
}

func (l *Loaded) HasVideo() bool { return l.VideoPath != "" }

// LoadFile reads and loads the document at path. Media paths resolve
// relative to the directory containing the document.
func LoadFile(path string, logger *slog.Logger) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline document: %w", err)
	}
	return load(data, path, filepath.Dir(path), logger)
}

// Load decodes data and resolves media paths relative to root. A missing
// audio file is a *MissingAssetError; a missing video file is logged and
// dropped.
func Load(data []byte, root string, logger *slog.Logger) (*Loaded, error) {
	return load(data, root, root, logger)
}

func load(data []byte, source, root string, logger *slog.Logger) (*Loaded, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, withPath(err, source)
	}

	var loaded *Loaded
	var audioRef, videoRef string
	switch doc.Generation {
	case GenerationNested:
		loaded, audioRef, videoRef, err = fromNested(doc.Nested)
	case GenerationLegacy:
		loaded, audioRef, videoRef, err = fromLegacy(doc.Legacy)
	}
	if err != nil {
		return nil, withPath(err, source)
	}
	loaded.Generation = doc.Generation

	loaded.AudioPath = resolve(root, audioRef)
	if _, err := os.Stat(loaded.AudioPath); err != nil {
		assetErr := &MissingAssetError{Path: loaded.AudioPath, Field: "audio"}
		if !errors.Is(err, os.ErrNotExist) {
			assetErr.Err = err
		}
		return nil, assetErr
	}

	if videoRef != "" {
		videoPath := resolve(root, videoRef)
		if _, err := os.Stat(videoPath); err != nil {
			if logger != nil {
				logger.Warn("video file not found, continuing without video",
					"path", videoPath,
					"error", err,
				)
			}
		} else {
			loaded.VideoPath = videoPath
		}
	}

	if logger != nil {
		logger.Info("timeline loaded",
			"generation", loaded.Generation.String(),
			"name", loaded.Name,
			"captions", len(loaded.Captions),
			"has_video", loaded.HasVideo(),
		)
	}
	return loaded, nil
}

func fromNested(t *Timeline) (*Loaded, string, string, error) {
	if len(t.Materials.Audios) == 0 || t.Materials.Audios[0].Path == "" {
		return nil, "", "", &MalformedDocumentError{Field: "materials.audios", Err: errors.New("no audio material")}
	}
	audioRef := t.Materials.Audios[0].Path

	var videoRef string
	if len(t.Materials.Videos) > 0 {
		videoRef = t.Materials.Videos[0].Path
	}

	texts := make(map[string]string, len(t.Materials.Texts))
	for _, m := range t.Materials.Texts {
		texts[m.ID] = m.Content
	}

	var caps []captions.Caption
	for ti, track := range t.Tracks {
		if track.Type != KindText {
			continue
		}
		for si, seg := range track.Segments {
			tr := seg.TargetTimerange
			if tr.Start < 0 || tr.Duration < 0 {
				return nil, "", "", &MalformedDocumentError{
					Field: fmt.Sprintf("tracks[%d].segments[%d].target_timerange", ti, si),
					Err:   fmt.Errorf("negative timerange start=%d duration=%d", tr.Start, tr.Duration),
				}
			}

			content := seg.Content
			if content == "" {
				content = texts[seg.MaterialID]
			}

			c := captions.Caption{
				Start:         Seconds(tr.Start),
				End:           Seconds(tr.Start + tr.Duration),
				Text:          content,
				Emotion:       captions.EmotionNeutral,
				ChunkID:       -1,
				SentenceCount: 1,
			}
			if md := seg.Metadata; md != nil {
				c.Emotion = captions.ParseEmotion(md.Emotion)
				if md.ChunkID != nil {
					c.ChunkID = *md.ChunkID
				}
				if md.SentenceCount != nil {
					c.SentenceCount = *md.SentenceCount
				}
			}
			caps = append(caps, c)
		}
	}

	sort.SliceStable(caps, func(i, j int) bool { return caps[i].Start < caps[j].Start })
	for i := range caps {
		if caps[i].ChunkID < 0 {
			caps[i].ChunkID = i
		}
	}

	return &Loaded{ID: t.ID, Name: t.Name, Captions: caps}, audioRef, videoRef, nil
}

func fromLegacy(l *LegacyDocument) (*Loaded, string, string, error) {
	if l.Audio == "" {
		return nil, "", "", &MalformedDocumentError{Field: "audio", Err: errors.New("audio path is empty")}
	}

	caps := make([]captions.Caption, 0, len(l.Captions))
	for i, entry := range l.Captions {
		if entry.Duration < 0 {
			return nil, "", "", &MalformedDocumentError{
				Field: fmt.Sprintf("captions[%d].duration", i),
				Err:   fmt.Errorf("negative duration %v", entry.Duration),
			}
		}
		c := captions.Caption{
			Start:         entry.Start,
			End:           entry.Start + entry.Duration,
			Text:          entry.Text,
			Emotion:       captions.ParseEmotion(entry.Emotion),
			ChunkID:       i,
			SentenceCount: 1,
		}
		if entry.ChunkID != nil {
			c.ChunkID = *entry.ChunkID
		}
		if entry.SentenceCount != nil {
			c.SentenceCount = *entry.SentenceCount
		}
		caps = append(caps, c)
	}

	return &Loaded{ID: l.ProjectID, Name: l.ProjectName, Captions: caps}, l.Audio, l.Video, nil
}

func resolve(root, ref string) string {
	p := filepath.FromSlash(ref)
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}

func withPath(err error, path string) error {
	var malformed *MalformedDocumentError
	if errors.As(err, &malformed) && malformed.Path == "" {
		malformed.Path = path
	}
	return err
}
