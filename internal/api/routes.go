package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/catalog"
	"github.com/heimdex/heimdex-captions/internal/export"
	"github.com/heimdex/heimdex-captions/internal/logging"
	"github.com/heimdex/heimdex-captions/internal/media"
	"github.com/heimdex/heimdex-captions/internal/project"
	"github.com/heimdex/heimdex-captions/internal/timeline"
	"github.com/heimdex/heimdex-captions/internal/transcript"
)

// maxBodyBytes bounds request bodies; word lists for long recordings are large.
const maxBodyBytes = 32 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	cfg.Logger = logging.OrDiscard(cfg.Logger)
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/captions", assembleHandler(cfg))
		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Get("/projects/{id}/captions", projectCaptionsHandler(cfg))
		r.Get("/projects/{id}/srt", projectSRTHandler(cfg))
		r.Get("/projects/{id}/media/{kind}", projectMediaHandler(cfg))
		r.Post("/projects/{id}/export", exportProjectHandler(cfg))
		r.Post("/jobs", enqueueHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		projectsCount, _ := cfg.Service.CountProjects(ctx)
		jobs, _ := cfg.Service.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == catalog.JobStatusRunning {
				state = "generating"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == catalog.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		chunking, emotion := cfg.Service.Methods()
		resp := StatusResponse{
			State:         state,
			LastError:     lastError,
			ProjectsCount: projectsCount,
			JobsRunning:   jobsRunning,
			ActiveJob:     activeJob,
			Captions:      CaptionMethods{ChunkingMethod: chunking, EmotionClassifier: emotion},
		}

		if cfg.Capabilities != nil {
			resp.Capabilities = &CapabilityResponse{
				Provider: cfg.Capabilities.Provider(),
				Models:   cfg.Capabilities.Status(),
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func assembleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssembleRequest
		if !decodeBody(w, r, &req) {
			return
		}

		words := make([]captions.Word, len(req.Words))
		for i, in := range req.Words {
			word, err := captions.NewWord(in.Text, in.Start, in.End)
			if err != nil {
				WriteError(w, http.StatusBadRequest, fmt.Sprintf("word %d: %v", i, err), "BAD_REQUEST")
				return
			}
			words[i] = word
		}

		res := cfg.Service.Assemble(r.Context(), words)
		caps := res.Captions
		if caps == nil {
			caps = []captions.Caption{}
		}
		WriteJSON(w, http.StatusOK, CaptionsResponse{
			Captions:       caps,
			CaptionMethods: CaptionMethods{ChunkingMethod: res.ChunkingMethod, EmotionClassifier: res.EmotionMethod},
		})
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = RecordToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalog.GenerateRequest
		if !decodeBody(w, r, &req) {
			return
		}

		p, err := cfg.Service.Generate(r.Context(), req)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusCreated, ProjectToResponse(p))
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Service.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func projectCaptionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Service.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		caps := p.Captions
		if caps == nil {
			caps = []captions.Caption{}
		}
		WriteJSON(w, http.StatusOK, CaptionsResponse{ProjectID: p.ID, Captions: caps})
	}
}

func projectSRTHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Service.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		tags, _ := strconv.ParseBool(r.URL.Query().Get("emotion_tags"))
		body := export.GenerateSRT(p.Captions, export.SRTOptions{EmotionTags: tags})

		name := export.FileName(p.Name)
		w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".srt"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

func projectMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := media.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		p, err := cfg.Service.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		path := p.AudioPath
		if kind == media.KindVideo {
			path = p.VideoPath
		}
		if err := media.Serve(w, r, path); err != nil {
			if errors.Is(err, media.ErrNotFound) {
				WriteError(w, http.StatusNotFound, string(kind)+" not found", "NOT_FOUND")
				return
			}
			cfg.Logger.Error("failed to serve media", "project_id", p.ID, "kind", kind, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to serve media", "INTERNAL_ERROR")
		}
	}
}

func enqueueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalog.GenerateRequest
		if !decodeBody(w, r, &req) {
			return
		}

		job, err := cfg.Service.Enqueue(r.Context(), req)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, EnqueueResponse{JobID: job.ID})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.Service.ListJobs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto response codes.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		formatErr    *transcript.FormatError
		malformedErr *timeline.MalformedDocumentError
		assetErr     *timeline.MissingAssetError
	)
	switch {
	case errors.Is(err, catalog.ErrInvalidRequest), errors.As(err, &formatErr):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, project.ErrNotFound):
		WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
	case errors.As(err, &malformedErr):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "MALFORMED_DOCUMENT")
	case errors.As(err, &assetErr):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "MISSING_ASSET")
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}
