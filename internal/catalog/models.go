package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

// ErrInvalidRequest marks a generate request that cannot be processed.
var ErrInvalidRequest = errors.New("invalid request")

// Project is the indexed summary of a project directory.
type Project struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Dir               string    `json:"dir"`
	AudioPath         string    `json:"audio_path"`
	VideoPath         string    `json:"video_path,omitempty"`
	CaptionCount      int       `json:"caption_count"`
	Duration          float64   `json:"duration"`
	ChunkingMethod    string    `json:"chunking_method,omitempty"`
	EmotionClassifier string    `json:"emotion_classifier,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

const (
	JobTypeGenerate = "generate"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	ProjectID string    `json:"project_id,omitempty"`
	Params    string    `json:"-"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GenerateRequest asks for captions to be built from words and written to a
// new project. Words are taken from WordsPath when it is set.
type GenerateRequest struct {
	Title     string          `json:"title,omitempty"`
	AudioPath string          `json:"audio_path"`
	VideoPath string          `json:"video_path,omitempty"`
	Words     []captions.Word `json:"words"`
	WordsPath string          `json:"words_path,omitempty"`
}

// Validate checks the request shape. It does not touch the filesystem.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.AudioPath) == "" {
		return fmt.Errorf("%w: audio_path is required", ErrInvalidRequest)
	}
	if r.WordsPath == "" && r.Words == nil {
		return fmt.Errorf("%w: words or words_path is required", ErrInvalidRequest)
	}
	return nil
}

func NewID() string {
	return uuid.NewString()
}
