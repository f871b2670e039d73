package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/logging"
	"github.com/heimdex/heimdex-captions/internal/project"
	"github.com/heimdex/heimdex-captions/internal/transcript"
)

type CaptionService interface {
	Assemble(ctx context.Context, words []captions.Word) captions.Result
	Methods() (chunking, emotion string)
	Generate(ctx context.Context, req GenerateRequest) (*project.Project, error)
	Enqueue(ctx context.Context, req GenerateRequest) (*Job, error)
	ExecuteGenerate(ctx context.Context, job *Job) error
	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	CountProjects(ctx context.Context) (int, error)
	SyncProjects(ctx context.Context) (int, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
}

type Service struct {
	repo      Repository
	store     *project.Store
	assembler *captions.Assembler
	logger    *slog.Logger
}

func NewService(repo Repository, store *project.Store, assembler *captions.Assembler, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		assembler: assembler,
		logger:    logging.WithComponent(logging.OrDiscard(logger), "catalog"),
	}
}

func (s *Service) Assemble(ctx context.Context, words []captions.Word) captions.Result {
	return s.assembler.Run(ctx, words)
}

func (s *Service) Methods() (chunking, emotion string) {
	return s.assembler.ChunkingMethod(), s.assembler.EmotionMethod()
}

// Generate assembles captions for the request, writes them to a new project
// directory and indexes it.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*project.Project, error) {
	return s.generate(ctx, req, func(int) {})
}

func (s *Service) generate(ctx context.Context, req GenerateRequest, progress func(int)) (*project.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	words, err := s.words(req)
	if err != nil {
		return nil, err
	}
	progress(10)

	res := s.assembler.Run(ctx, words)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress(60)

	chunking, emotion := res.ChunkingMethod, res.EmotionMethod
	p, err := s.store.Create(ctx, project.CreateRequest{
		Title:             req.Title,
		AudioPath:         req.AudioPath,
		VideoPath:         req.VideoPath,
		Captions:          res.Captions,
		ChunkingMethod:    chunking,
		EmotionClassifier: emotion,
	})
	if err != nil {
		return nil, err
	}
	progress(90)

	rec := recordFor(p)
	rec.ChunkingMethod = chunking
	rec.EmotionClassifier = emotion
	rec.CreatedAt = time.Now()
	if err := s.repo.UpsertProject(ctx, rec); err != nil {
		return nil, fmt.Errorf("index project %s: %w", p.ID, err)
	}
	return p, nil
}

func (s *Service) words(req GenerateRequest) ([]captions.Word, error) {
	if req.WordsPath != "" {
		words, err := transcript.LoadFile(req.WordsPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return words, err
	}
	words := make([]captions.Word, len(req.Words))
	for i, w := range req.Words {
		valid, err := captions.NewWord(w.Text, w.Start, w.End)
		if err != nil {
			return nil, fmt.Errorf("%w: word %d: %v", ErrInvalidRequest, i, err)
		}
		words[i] = valid
	}
	return words, nil
}

// Enqueue records a pending generate job for the runner.
func (s *Service) Enqueue(ctx context.Context, req GenerateRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	params, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode job params: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeGenerate,
		Status:    JobStatusPending,
		Params:    string(params),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	logging.WithJobID(s.logger, job.ID).Info("generate job created", "title", req.Title)
	return job, nil
}

// ExecuteGenerate runs a generate job and records its outcome on the job row.
func (s *Service) ExecuteGenerate(ctx context.Context, job *Job) error {
	logger := logging.WithJobID(s.logger, job.ID)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	var req GenerateRequest
	if err := json.Unmarshal([]byte(job.Params), &req); err != nil {
		err = fmt.Errorf("%w: decode job params: %v", ErrInvalidRequest, err)
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	logger.Info("starting generate", "audio", logging.SanitizePath(req.AudioPath))
	p, err := s.generate(ctx, req, func(pct int) {
		s.repo.UpdateJobProgress(ctx, job.ID, pct)
	})
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	if err := s.repo.SetJobProject(ctx, job.ID, p.ID); err != nil {
		logger.Warn("failed to link job to project", "project_id", p.ID, "error", err)
	}
	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	logger.Info("generate completed", "project_id", p.ID, "captions", p.CaptionCount)
	return nil
}

// GetProject opens the project document; the directory is the source of truth.
func (s *Service) GetProject(ctx context.Context, id string) (*project.Project, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) CountProjects(ctx context.Context) (int, error) {
	return s.repo.CountProjects(ctx)
}

// SyncProjects reindexes the project directories on disk. Rows for missing
// directories are removed and unreadable directories are skipped.
func (s *Service) SyncProjects(ctx context.Context) (int, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(entries))
	synced := 0
	for _, e := range entries {
		p, err := s.store.Open(ctx, e.Dir)
		if err != nil {
			s.logger.Warn("skipping unreadable project", "dir", logging.SanitizePath(e.Dir), "error", err)
			continue
		}
		seen[p.ID] = true

		rec := recordFor(p)
		rec.CreatedAt = e.ModifiedAt
		if err := s.repo.UpsertProject(ctx, rec); err != nil {
			return synced, fmt.Errorf("index project %s: %w", p.ID, err)
		}
		synced++
	}

	indexed, err := s.repo.ListProjects(ctx)
	if err != nil {
		return synced, err
	}
	for _, rec := range indexed {
		if seen[rec.ID] {
			continue
		}
		if err := s.repo.DeleteProject(ctx, rec.ID); err != nil {
			return synced, err
		}
		s.logger.Info("removed stale project", "project_id", rec.ID)
	}

	s.logger.Info("projects synced", "count", synced)
	return synced, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func recordFor(p *project.Project) *Project {
	return &Project{
		ID:           p.ID,
		Name:         p.Name,
		Dir:          p.Dir,
		AudioPath:    p.AudioPath,
		VideoPath:    p.VideoPath,
		CaptionCount: p.CaptionCount,
		Duration:     p.Duration,
	}
}
