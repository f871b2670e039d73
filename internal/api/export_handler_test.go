package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	exportpkg "github.com/heimdex/heimdex-captions/internal/export"
)

func TestExportProject_HappyPath(t *testing.T) {
	a := newTestAPI(t)
	created := a.createProject(t, "Team Update")
	outDir := t.TempDir()

	rr := a.do(newRequest(t, http.MethodPost, "/projects/"+created.ID+"/export", exportpkg.ExportRequest{
		Format:      "SRT",
		OutputDir:   outDir,
		EmotionTags: false,
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp exportpkg.ExportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Format != exportpkg.FormatSRT || resp.CaptionCount != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.OutputPath != filepath.Join(outDir, "Team Update.srt") {
		t.Errorf("OutputPath = %q", resp.OutputPath)
	}

	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "What a great day.") || strings.Contains(string(data), "[happy]") {
		t.Errorf("srt = %q", data)
	}
}

func TestExportProject_Errors(t *testing.T) {
	a := newTestAPI(t)
	created := a.createProject(t, "Clip")

	tests := []struct {
		name     string
		id       string
		req      exportpkg.ExportRequest
		wantCode int
	}{
		{"invalid format", created.ID, exportpkg.ExportRequest{Format: "edl", OutputDir: t.TempDir()}, http.StatusBadRequest},
		{"missing output dir", created.ID, exportpkg.ExportRequest{Format: "srt"}, http.StatusBadRequest},
		{"path traversal", created.ID, exportpkg.ExportRequest{Format: "srt", OutputDir: "/tmp/../etc"}, http.StatusBadRequest},
		{"nonexistent dir", created.ID, exportpkg.ExportRequest{OutputDir: filepath.Join(t.TempDir(), "nope")}, http.StatusBadRequest},
		{"unknown project", "NOPE", exportpkg.ExportRequest{OutputDir: t.TempDir()}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(newRequest(t, http.MethodPost, "/projects/"+tt.id+"/export", tt.req))
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.wantCode, rr.Body.String())
			}
		})
	}
}
