package capability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

func newCapabilityServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /detect", func(w http.ResponseWriter, r *http.Request) {
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Text {
		case "overloaded":
			http.Error(w, "busy", http.StatusServiceUnavailable)
		case "no dominant":
			json.NewEncoder(w).Encode(detectResponse{Emotions: []captions.Label{
				{Name: "neutral", Score: 0.2}, {Name: "anger", Score: 0.7}, {Name: "joy", Score: 0.1},
			}})
		default:
			json.NewEncoder(w).Encode(detectResponse{
				Emotions:        []captions.Label{{Name: "joy", Score: 0.8}, {Name: "sadness", Score: 0.2}},
				DominantEmotion: "joy",
			})
		}
	})
	mux.HandleFunc("POST /embed", func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := embedResponse{}
		for i := range req.Texts {
			out.Embeddings = append(out.Embeddings, []float64{float64(i), 1})
		}
		json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Classify(t *testing.T) {
	srv := newCapabilityServer(t)
	c := NewHTTPClient("", srv.URL+"/", time.Second)

	got, err := c.Classify(context.Background(), "what a great day")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Name != "joy" || got.Score != 0.8 {
		t.Errorf("Classify() = %+v, want joy/0.8", got)
	}

	got, err = c.Classify(context.Background(), "no dominant")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Name != "anger" {
		t.Errorf("Classify() without dominant = %+v, want highest score anger", got)
	}
}

func TestHTTPClient_StatusError(t *testing.T) {
	srv := newCapabilityServer(t)
	c := NewHTTPClient("", srv.URL, time.Second)

	_, err := c.Classify(context.Background(), "overloaded")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Classify() error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || !se.IsRetryable() {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestHTTPClient_Embed(t *testing.T) {
	srv := newCapabilityServer(t)
	c := NewHTTPClient(srv.URL, "", time.Second)

	got, err := c.Embed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 3 || got[2][0] != 2 {
		t.Errorf("Embed() = %v", got)
	}
}

func TestHTTPClient_Unconfigured(t *testing.T) {
	c := NewHTTPClient("", "", 0)
	if _, err := c.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("Embed() without url: expected error")
	}
	if _, err := c.Classify(context.Background(), "x"); err == nil {
		t.Error("Classify() without url: expected error")
	}
}

func TestStatusError_IsRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		e := &StatusError{StatusCode: tt.code}
		if got := e.IsRetryable(); got != tt.want {
			t.Errorf("StatusError{%d}.IsRetryable() = %v, want %v", tt.code, got, tt.want)
		}
	}
}
