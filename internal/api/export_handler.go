package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-captions/internal/export"
)

func exportProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ExportRequest
		if !decodeBody(w, r, &req) {
			return
		}

		format := strings.ToLower(req.Format)
		if format == "" {
			format = export.FormatSRT
		}
		if format != export.FormatSRT {
			WriteError(w, http.StatusBadRequest, "format must be srt", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		p, err := cfg.Service.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		outputPath, err := export.WriteSRT(req.OutputDir, p.Name, p.Captions, export.SRTOptions{EmotionTags: req.EmotionTags})
		if err != nil {
			cfg.Logger.Error("export failed", "project_id", p.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, export.ExportResponse{
			Status:       "ok",
			Format:       format,
			OutputPath:   outputPath,
			CaptionCount: len(p.Captions),
		})
	}
}
