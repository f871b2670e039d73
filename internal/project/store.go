// Package project stores caption projects as CapCut-style directories:
// <root>/<ID>/draft_content.json with media copied into material/import.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/export"
	"github.com/heimdex/heimdex-captions/internal/logging"
	"github.com/heimdex/heimdex-captions/internal/timeline"
)

const importDir = "material/import"

// ErrNotFound is returned when no project matches.
var ErrNotFound = errors.New("project not found")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// CreateRequest describes a new project.
type CreateRequest struct {
	Title             string
	AudioPath         string
	VideoPath         string // optional
	Captions          []captions.Caption
	ChunkingMethod    string
	EmotionClassifier string
}

// Project is a project directory and its loaded document.
type Project struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Dir          string             `json:"dir"`
	Generation   string             `json:"generation"`
	AudioPath    string             `json:"audio_path"`
	VideoPath    string             `json:"video_path,omitempty"`
	CaptionCount int                `json:"caption_count"`
	Duration     float64            `json:"duration"`
	ModifiedAt   time.Time          `json:"modified_at"`
	Captions     []captions.Caption `json:"-"`
}

// Entry is a project directory found by List.
type Entry struct {
	ID         string    `json:"id"`
	Dir        string    `json:"dir"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Store manages project directories under one root.
type Store struct {
	root   string
	opts   timeline.Options
	logger *slog.Logger
}

// NewStore creates the root directory if needed.
func NewStore(root string, opts timeline.Options, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("projects root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create projects root: %w", err)
	}
	return &Store{
		root:   root,
		opts:   opts,
		logger: logging.WithComponent(logging.OrDiscard(logger), "project"),
	}, nil
}

func (s *Store) Root() string { return s.root }

// Create copies the media into a new project directory and writes its
// timeline document. The audio file must exist; a missing video is dropped
// with a warning.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(req.AudioPath); err != nil || info.IsDir() {
		assetErr := &timeline.MissingAssetError{Path: req.AudioPath, Field: "audio"}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			assetErr.Err = err
		}
		return nil, assetErr
	}

	title := export.ProjectTitle(req.Title)

	id := strings.ToUpper(uuid.NewString())
	dir := filepath.Join(s.root, id)
	logger := logging.WithProjectID(s.logger, id)

	p, err := s.create(ctx, dir, id, title, req, logger)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	logger.Info("project created",
		"name", title,
		"captions", p.CaptionCount,
		"has_video", p.VideoPath != "",
		"chunking_method", req.ChunkingMethod,
		"emotion_classifier", req.EmotionClassifier,
	)
	return p, nil
}

func (s *Store) create(ctx context.Context, dir, id, title string, req CreateRequest, logger *slog.Logger) (*Project, error) {
	audioRef, err := s.importMedia(dir, req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	if audioRef == "" {
		return nil, &timeline.MissingAssetError{Path: req.AudioPath, Field: "audio"}
	}

	var videoRef string
	switch {
	case req.VideoPath == "":
	case filepath.Clean(req.VideoPath) == filepath.Clean(req.AudioPath):
		videoRef = audioRef
	default:
		videoRef, err = s.importMedia(dir, req.VideoPath)
		if err != nil {
			return nil, fmt.Errorf("copy video: %w", err)
		}
		if videoRef == "" {
			logger.Warn("video file not found, creating project without video",
				"path", logging.SanitizePath(req.VideoPath))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := s.opts
	opts.ChunkingMethod = req.ChunkingMethod
	opts.EmotionClassifier = req.EmotionClassifier
	t := timeline.Serialize(req.Captions, audioRef, videoRef, title, opts)
	t.ID = id

	data, err := timeline.Encode(t)
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	docPath := filepath.Join(dir, timeline.DocumentFile)
	if err := WriteFileAtomic(docPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write timeline: %w", err)
	}

	var modified time.Time
	if info, err := os.Stat(docPath); err == nil {
		modified = info.ModTime()
	}

	p := &Project{
		ID:           id,
		Name:         title,
		Dir:          dir,
		Generation:   timeline.GenerationNested.String(),
		AudioPath:    filepath.Join(dir, filepath.FromSlash(audioRef)),
		CaptionCount: len(req.Captions),
		Duration:     t.Metadata.TotalDuration,
		ModifiedAt:   modified,
		Captions:     req.Captions,
	}
	if videoRef != "" {
		p.VideoPath = filepath.Join(dir, filepath.FromSlash(videoRef))
	}
	return p, nil
}

// importMedia copies src into the project's import directory and returns the
// project-relative reference, or "" when src does not exist. A basename
// already taken in the import directory gets a numeric suffix.
func (s *Store) importMedia(dir, src string) (string, error) {
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	ref, err := freeImportRef(dir, filepath.Base(src))
	if err != nil {
		return "", err
	}
	copied, err := CopyFileIfExists(src, filepath.Join(dir, filepath.FromSlash(ref)), false)
	if err != nil || !copied {
		return "", err
	}
	return ref, nil
}

func freeImportRef(dir, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for n := 1; ; n++ {
		ref := importDir + "/" + name
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(ref)))
		if errors.Is(err, os.ErrNotExist) {
			return ref, nil
		}
		if err != nil {
			return "", err
		}
		name = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
}

// Open loads the project in dir.
func (s *Store) Open(ctx context.Context, dir string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docPath := filepath.Join(dir, timeline.DocumentFile)
	info, err := os.Stat(docPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrNotFound, timeline.DocumentFile, dir)
		}
		return nil, err
	}

	loaded, err := timeline.LoadFile(docPath, logging.WithProjectID(s.logger, filepath.Base(dir)))
	if err != nil {
		return nil, err
	}

	p := &Project{
		ID:           filepath.Base(dir),
		Name:         loaded.Name,
		Dir:          dir,
		Generation:   loaded.Generation.String(),
		AudioPath:    loaded.AudioPath,
		VideoPath:    loaded.VideoPath,
		CaptionCount: len(loaded.Captions),
		ModifiedAt:   info.ModTime(),
		Captions:     loaded.Captions,
	}
	for _, c := range loaded.Captions {
		if c.End > p.Duration {
			p.Duration = c.End
		}
	}
	return p, nil
}

// Get opens the project directory named id under the root.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	if !idPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return s.Open(ctx, filepath.Join(s.root, id))
}

// List returns the project directories that hold a timeline document,
// ordered by directory mtime, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read projects root: %w", err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.root, d.Name())
		if _, err := os.Stat(filepath.Join(dir, timeline.DocumentFile)); err != nil {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: d.Name(), Dir: dir, ModifiedAt: info.ModTime()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ModifiedAt.Equal(entries[j].ModifiedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
	})
	return entries, nil
}

// Latest opens the project whose directory was modified most recently.
func (s *Store) Latest(ctx context.Context) (*Project, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no projects in %s", ErrNotFound, s.root)
	}
	return s.Open(ctx, entries[0].Dir)
}
