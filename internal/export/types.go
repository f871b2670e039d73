package export

// ExportRequest asks for a project's captions as subtitles.
type ExportRequest struct {
	Format      string `json:"format"`
	OutputDir   string `json:"output_dir"`
	EmotionTags bool   `json:"emotion_tags"`
}

type ExportResponse struct {
	Status       string `json:"status"`
	Format       string `json:"format"`
	OutputPath   string `json:"output_path"`
	CaptionCount int    `json:"caption_count"`
}

// FormatSRT is the only supported export format.
const FormatSRT = "srt"
