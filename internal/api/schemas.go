package api

import (
	"time"

	"github.com/heimdex/heimdex-captions/internal/capability"
	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/catalog"
	"github.com/heimdex/heimdex-captions/internal/project"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State         string              `json:"state"`
	LastError     string              `json:"last_error,omitempty"`
	ProjectsCount int                 `json:"projects_count"`
	JobsRunning   int                 `json:"jobs_running"`
	ActiveJob     *JobResponse        `json:"active_job,omitempty"`
	Captions      CaptionMethods      `json:"captions"`
	Capabilities  *CapabilityResponse `json:"capabilities,omitempty"`
}

// CaptionMethods names the chunking and emotion strategies in effect.
type CaptionMethods struct {
	ChunkingMethod    string `json:"chunking_method"`
	EmotionClassifier string `json:"emotion_classifier"`
}

type CapabilityResponse struct {
	Provider string              `json:"provider"`
	Models   []capability.Status `json:"models"`
}

type AssembleRequest struct {
	Words []captions.Word `json:"words"`
}

type CaptionsResponse struct {
	ProjectID string             `json:"project_id,omitempty"`
	Captions  []captions.Caption `json:"captions"`
	CaptionMethods
}

type ProjectResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Dir          string  `json:"dir"`
	Generation   string  `json:"generation,omitempty"`
	AudioPath    string  `json:"audio_path"`
	VideoPath    string  `json:"video_path,omitempty"`
	CaptionCount int     `json:"caption_count"`
	Duration     float64 `json:"duration"`
	ModifiedAt   string  `json:"modified_at,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`

	ChunkingMethod    string `json:"chunking_method,omitempty"`
	EmotionClassifier string `json:"emotion_classifier,omitempty"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type EnqueueResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	ProjectID string `json:"project_id,omitempty"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Dir:          p.Dir,
		Generation:   p.Generation,
		AudioPath:    p.AudioPath,
		VideoPath:    p.VideoPath,
		CaptionCount: p.CaptionCount,
		Duration:     p.Duration,
		ModifiedAt:   p.ModifiedAt.Format(time.RFC3339),
	}
}

func RecordToResponse(p *catalog.Project) ProjectResponse {
	return ProjectResponse{
		ID:                p.ID,
		Name:              p.Name,
		Dir:               p.Dir,
		AudioPath:         p.AudioPath,
		VideoPath:         p.VideoPath,
		CaptionCount:      p.CaptionCount,
		Duration:          p.Duration,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		ChunkingMethod:    p.ChunkingMethod,
		EmotionClassifier: p.EmotionClassifier,
	}
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		ProjectID: j.ProjectID,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}
