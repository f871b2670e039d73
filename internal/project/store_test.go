package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/export"
	"github.com/heimdex/heimdex-captions/internal/timeline"
)

var upperUUID = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "capcut_projects"), timeline.Options{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func writeMedia(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleCaptions() []captions.Caption {
	return []captions.Caption{
		{Start: 0.5, End: 2, Text: "Hello there.", Emotion: captions.EmotionHappy, ChunkID: 0, SentenceCount: 1},
		{Start: 2.25, End: 4.125, Text: "It was a long day. Very long.", Emotion: captions.EmotionSad, ChunkID: 1, SentenceCount: 2},
	}
}

func TestStore_CreateAndOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	audio := writeMedia(t, "voice.wav", "RIFF-audio")
	video := writeMedia(t, "clip.mp4", "mp4-video")

	p, err := s.Create(ctx, CreateRequest{
		Title:             "My\nShow",
		AudioPath:         audio,
		VideoPath:         video,
		Captions:          sampleCaptions(),
		ChunkingMethod:    "semantic",
		EmotionClassifier: "model",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !upperUUID.MatchString(p.ID) {
		t.Errorf("ID = %q, want upper-case uuid", p.ID)
	}
	if p.Name != "My Show" {
		t.Errorf("Name = %q, want sanitised title", p.Name)
	}
	if got, err := os.ReadFile(filepath.Join(p.Dir, "material", "import", "voice.wav")); err != nil || string(got) != "RIFF-audio" {
		t.Errorf("imported audio = %q, %v", got, err)
	}
	if p.VideoPath == "" {
		t.Error("VideoPath is empty, want imported video")
	}

	opened, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if opened.Name != p.Name || opened.AudioPath != p.AudioPath || opened.VideoPath != p.VideoPath {
		t.Errorf("Get() = %+v, want %+v", opened, p)
	}
	if opened.Generation != "nested" {
		t.Errorf("Generation = %q, want nested", opened.Generation)
	}
	if len(opened.Captions) != 2 || opened.Captions[1] != sampleCaptions()[1] {
		t.Errorf("Captions = %+v", opened.Captions)
	}
	if opened.Duration != 4.125 {
		t.Errorf("Duration = %v, want 4.125", opened.Duration)
	}

	data, err := os.ReadFile(filepath.Join(p.Dir, timeline.DocumentFile))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := timeline.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if doc.Nested.ID != p.ID {
		t.Errorf("document id = %q, want %q", doc.Nested.ID, p.ID)
	}
	if m := doc.Nested.Metadata; m.ChunkingMethod != "semantic" || m.EmotionClassifier != "model" || !m.HasOriginalVideo {
		t.Errorf("metadata = %+v", m)
	}
}

func TestStore_CreateMissingAudio(t *testing.T) {
	s := newTestStore(t)
	missing := filepath.Join(t.TempDir(), "nope.wav")

	_, err := s.Create(context.Background(), CreateRequest{Title: "x", AudioPath: missing})
	var assetErr *timeline.MissingAssetError
	if !errors.As(err, &assetErr) {
		t.Fatalf("Create() error = %v, want *MissingAssetError", err)
	}
	if assetErr.Field != "audio" || assetErr.Optional {
		t.Errorf("MissingAssetError = %+v", assetErr)
	}

	entries, _ := os.ReadDir(s.Root())
	if len(entries) != 0 {
		t.Errorf("failed create left %d entries behind", len(entries))
	}
}

func TestStore_CreateMissingVideo(t *testing.T) {
	s := newTestStore(t)
	audio := writeMedia(t, "voice.wav", "a")

	p, err := s.Create(context.Background(), CreateRequest{
		Title:     "no video",
		AudioPath: audio,
		VideoPath: filepath.Join(t.TempDir(), "gone.mp4"),
		Captions:  sampleCaptions(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.VideoPath != "" {
		t.Errorf("VideoPath = %q, want empty", p.VideoPath)
	}

	data, _ := os.ReadFile(filepath.Join(p.Dir, timeline.DocumentFile))
	doc, err := timeline.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(doc.Nested.Materials.Videos) != 0 || doc.Nested.Metadata.HasOriginalVideo {
		t.Errorf("document references a video: %+v", doc.Nested.Materials.Videos)
	}
}

func TestStore_EmptyTitle(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create(context.Background(), CreateRequest{AudioPath: writeMedia(t, "a.wav", "a")})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Name != export.DefaultTitle {
		t.Errorf("Name = %q, want %q", p.Name, export.DefaultTitle)
	}
}

func TestStore_ListAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty root error = %v, want ErrNotFound", err)
	}

	audio := writeMedia(t, "a.wav", "a")
	first, err := s.Create(ctx, CreateRequest{Title: "first", AudioPath: audio})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Create(ctx, CreateRequest{Title: "second", AudioPath: audio})
	if err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(first.Dir, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(s.Root(), "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2 (directories without a document are skipped)", len(entries))
	}
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Errorf("List() order = %s, %s; want newest first", entries[0].ID, entries[1].ID)
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != second.ID || latest.Name != "second" {
		t.Errorf("Latest() = %s (%s), want %s", latest.ID, latest.Name, second.ID)
	}
}

func TestStore_LatestUsesDirectoryMtime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	audio := writeMedia(t, "a.wav", "a")

	older, err := s.Create(ctx, CreateRequest{Title: "older", AudioPath: audio})
	if err != nil {
		t.Fatal(err)
	}
	newer, err := s.Create(ctx, CreateRequest{Title: "newer", AudioPath: audio})
	if err != nil {
		t.Fatal(err)
	}

	// The older project's document is touched last, but its directory is not.
	past := time.Now().Add(-2 * time.Hour)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(older.Dir, timeline.DocumentFile), future, future); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(older.Dir, past, past); err != nil {
		t.Fatal(err)
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != newer.ID {
		t.Errorf("Latest() = %s (%s), want %s (newest directory)", latest.ID, latest.Name, newer.ID)
	}
}

func TestStore_ImportsCollidingBasenames(t *testing.T) {
	s := newTestStore(t)
	audio := writeMedia(t, "take.mp4", "audio-bytes")
	video := writeMedia(t, "take.mp4", "video-bytes")

	p, err := s.Create(context.Background(), CreateRequest{Title: "take", AudioPath: audio, VideoPath: video})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.AudioPath == p.VideoPath {
		t.Fatalf("audio and video share %s", p.AudioPath)
	}
	if got, _ := os.ReadFile(p.AudioPath); string(got) != "audio-bytes" {
		t.Errorf("audio = %q, want audio-bytes", got)
	}
	if got, _ := os.ReadFile(p.VideoPath); string(got) != "video-bytes" {
		t.Errorf("video = %q, want video-bytes", got)
	}
	if filepath.Base(p.VideoPath) != "take-1.mp4" {
		t.Errorf("video imported as %s, want take-1.mp4", filepath.Base(p.VideoPath))
	}

	loaded, err := s.Open(context.Background(), p.Dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if loaded.AudioPath != p.AudioPath || loaded.VideoPath != p.VideoPath {
		t.Errorf("loaded media = %s, %s; want %s, %s", loaded.AudioPath, loaded.VideoPath, p.AudioPath, p.VideoPath)
	}
}

func TestStore_SameFileForAudioAndVideo(t *testing.T) {
	s := newTestStore(t)
	clip := writeMedia(t, "clip.mp4", "av")

	p, err := s.Create(context.Background(), CreateRequest{AudioPath: clip, VideoPath: clip})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.VideoPath != p.AudioPath {
		t.Errorf("VideoPath = %s, want the imported audio %s", p.VideoPath, p.AudioPath)
	}
	entries, err := os.ReadDir(filepath.Join(p.Dir, "material", "import"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("import dir has %d files, want 1", len(entries))
	}
}

func TestStore_GetRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", "..", "../etc", "a/b"} {
		if _, err := s.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestStore_OpenLegacyProject(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(s.Root(), "LEGACY-1")
	if err := os.MkdirAll(filepath.Join(dir, "material", "import"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "material", "import", "a.mp3"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := `{"project_id":"LEGACY-1","project_name":"Old","audio":"material/import/a.mp3","video":null,
		"captions":[{"text":"Hi.","start":0.5,"duration":1.25,"emotion":"happy"}]}`
	if err := os.WriteFile(filepath.Join(dir, timeline.DocumentFile), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := s.Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.Generation != "legacy" || p.Name != "Old" || p.CaptionCount != 1 || p.Duration != 1.75 {
		t.Errorf("Open() = %+v", p)
	}
}
