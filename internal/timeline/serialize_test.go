package timeline

import (
	"encoding/json"
	"testing"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

func sampleCaptions() []captions.Caption {
	return []captions.Caption{
		{Start: 0.5, End: 2.0, Text: "what a great day", Emotion: captions.EmotionHappy, ChunkID: 0, SentenceCount: 1},
		{Start: 2.25, End: 4.1, Text: "it rained all morning", Emotion: captions.EmotionSad, ChunkID: 1, SentenceCount: 2},
		{Start: 4.1, End: 7.333333, Text: "wow look at that", Emotion: captions.EmotionSurprised, ChunkID: 2, SentenceCount: 1},
	}
}

func trackOf(t *testing.T, tl *Timeline, kind Kind) *Track {
	t.Helper()
	for i := range tl.Tracks {
		if tl.Tracks[i].Type == kind {
			return &tl.Tracks[i]
		}
	}
	return nil
}

func TestSerialize_AudioOnly(t *testing.T) {
	tl := Serialize(sampleCaptions(), "material/import/voice.wav", "", "Demo", Options{})

	if tl.Name != "Demo" || tl.Version != SchemaVersion {
		t.Errorf("Name/Version = %q/%d, want Demo/%d", tl.Name, tl.Version, SchemaVersion)
	}
	if len(tl.Materials.Audios) != 1 || tl.Materials.Audios[0].Path != "material/import/voice.wav" {
		t.Fatalf("audios = %+v, want one material/import/voice.wav", tl.Materials.Audios)
	}
	if len(tl.Materials.Videos) != 0 {
		t.Errorf("videos = %d, want 0", len(tl.Materials.Videos))
	}
	if len(tl.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2 (audio, text)", len(tl.Tracks))
	}
	if trackOf(t, tl, KindVideo) != nil {
		t.Error("unexpected video track")
	}
	audio := trackOf(t, tl, KindAudio)
	if audio == nil || len(audio.Segments) != 1 || audio.Segments[0].MaterialID != tl.Materials.Audios[0].ID {
		t.Fatalf("audio track = %+v, want one segment bound to the audio material", audio)
	}
	if tl.Metadata.HasOriginalVideo {
		t.Error("HasOriginalVideo = true, want false")
	}
}

func TestSerialize_WithVideo(t *testing.T) {
	tl := Serialize(sampleCaptions(), "a.wav", "material/import/clip.mp4", "Demo", Options{})

	if len(tl.Materials.Videos) != 1 || tl.Materials.Videos[0].Path != "material/import/clip.mp4" {
		t.Fatalf("videos = %+v", tl.Materials.Videos)
	}
	if trackOf(t, tl, KindVideo) == nil {
		t.Fatal("missing video track")
	}
	if len(tl.Tracks) != 3 {
		t.Errorf("tracks = %d, want 3", len(tl.Tracks))
	}
	if !tl.Metadata.HasOriginalVideo {
		t.Error("HasOriginalVideo = false, want true")
	}
}

func TestSerialize_TextSegments(t *testing.T) {
	caps := sampleCaptions()
	tl := Serialize(caps, "a.wav", "", "Demo", Options{ChunkingMethod: "semantic", EmotionClassifier: "keyword"})

	text := trackOf(t, tl, KindText)
	if text == nil {
		t.Fatal("missing text track")
	}
	if len(text.Segments) != len(caps) || len(tl.Materials.Texts) != len(caps) {
		t.Fatalf("text segments/materials = %d/%d, want %d", len(text.Segments), len(tl.Materials.Texts), len(caps))
	}

	for i, seg := range text.Segments {
		if seg.MaterialID != tl.Materials.Texts[i].ID {
			t.Errorf("segment %d material_id = %s, want %s", i, seg.MaterialID, tl.Materials.Texts[i].ID)
		}
		if seg.Content != caps[i].Text || tl.Materials.Texts[i].Content != caps[i].Text {
			t.Errorf("segment %d content = %q, want %q", i, seg.Content, caps[i].Text)
		}
		if seg.Metadata == nil || seg.Metadata.Emotion != string(caps[i].Emotion) {
			t.Errorf("segment %d metadata = %+v, want emotion %s", i, seg.Metadata, caps[i].Emotion)
		}
		if seg.Metadata.ChunkID == nil || *seg.Metadata.ChunkID != caps[i].ChunkID {
			t.Errorf("segment %d chunk_id mismatch", i)
		}
	}

	first := text.Segments[0].TargetTimerange
	if first.Start != 500_000 || first.Duration != 1_500_000 {
		t.Errorf("segment 0 timerange = %+v, want {500000 1500000}", first)
	}
	if tl.Duration != 7_333_333 {
		t.Errorf("Duration = %d, want 7333333", tl.Duration)
	}
	if tl.Metadata.TotalChunks != 3 || tl.Metadata.ChunkingMethod != "semantic" {
		t.Errorf("metadata = %+v", tl.Metadata)
	}
}

func TestSerialize_NoCaptions(t *testing.T) {
	tl := Serialize(nil, "a.wav", "", "Empty", Options{})
	if tl.Duration != 0 {
		t.Errorf("Duration = %d, want 0", tl.Duration)
	}
	text := trackOf(t, tl, KindText)
	if text == nil || len(text.Segments) != 0 {
		t.Errorf("text track = %+v, want empty", text)
	}
}

func TestSerialize_FreshUniqueIDs(t *testing.T) {
	a := Serialize(sampleCaptions(), "a.wav", "v.mp4", "Demo", Options{})
	b := Serialize(sampleCaptions(), "a.wav", "v.mp4", "Demo", Options{})

	seen := map[string]bool{}
	collect := func(tl *Timeline) {
		ids := []string{tl.ID}
		for _, m := range tl.Materials.Audios {
			ids = append(ids, m.ID)
		}
		for _, m := range tl.Materials.Videos {
			ids = append(ids, m.ID)
		}
		for _, m := range tl.Materials.Texts {
			ids = append(ids, m.ID)
		}
		for _, tr := range tl.Tracks {
			ids = append(ids, tr.ID)
			for _, s := range tr.Segments {
				ids = append(ids, s.ID)
			}
		}
		for _, id := range ids {
			if id == "" {
				t.Fatal("empty id")
			}
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	}
	collect(a)
	collect(b)
}

func TestMicros(t *testing.T) {
	tests := []struct {
		seconds float64
		want    int64
	}{
		{0, 0},
		{1, 1_000_000},
		{1.1, 1_100_000},
		{1.2345678, 1_234_568},
		{0.0000004, 0},
		{1.9999996, 2_000_000},
	}
	for _, tt := range tests {
		if got := Micros(tt.seconds); got != tt.want {
			t.Errorf("Micros(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestEncode_UsesNestedKeys(t *testing.T) {
	data, err := Encode(Serialize(sampleCaptions(), "a.wav", "", "Demo", Options{}))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"id", "name", "duration", "materials", "tracks", "canvas_config", "metadata"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("encoded document missing key %q", key)
		}
	}
	if _, ok := raw["captions"]; ok {
		t.Error("nested document must not carry a captions key")
	}
}
