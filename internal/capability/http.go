package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

const maxErrorBody = 4 * 1024

// StatusError is a non-200 reply from a capability service.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsRetryable reports whether the request may succeed if sent again.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Emotions        []captions.Label `json:"emotions"`
	DominantEmotion string           `json:"dominant_emotion"`
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// HTTPClient talks to JSON capability services: POST <emotion>/detect and
// POST <embedding>/embed.
type HTTPClient struct {
	c            *http.Client
	embeddingURL string
	emotionURL   string
}

// NewHTTPClient creates a client. Either URL may be empty when that
// capability is not served.
func NewHTTPClient(embeddingURL, emotionURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		c:            &http.Client{Timeout: timeout},
		embeddingURL: strings.TrimRight(embeddingURL, "/"),
		emotionURL:   strings.TrimRight(emotionURL, "/"),
	}
}

func (h *HTTPClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if h.embeddingURL == "" {
		return nil, fmt.Errorf("embedding url not configured")
	}
	var out embedResponse
	if err := h.post(ctx, h.embeddingURL+"/embed", embedRequest{Texts: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// Classify returns the dominant emotion and its score. Without a dominant
// emotion in the reply the highest scoring entry is used.
func (h *HTTPClient) Classify(ctx context.Context, text string) (captions.Label, error) {
	if h.emotionURL == "" {
		return captions.Label{}, fmt.Errorf("emotion url not configured")
	}
	var out detectResponse
	if err := h.post(ctx, h.emotionURL+"/detect", detectRequest{Text: text}, &out); err != nil {
		return captions.Label{}, err
	}
	return out.dominant()
}

func (r detectResponse) dominant() (captions.Label, error) {
	if r.DominantEmotion != "" {
		best := captions.Label{Name: r.DominantEmotion}
		for _, e := range r.Emotions {
			if e.Name == r.DominantEmotion {
				best.Score = e.Score
				break
			}
		}
		return best, nil
	}
	if len(r.Emotions) == 0 {
		return captions.Label{}, fmt.Errorf("detect: empty emotion list")
	}
	best := r.Emotions[0]
	for _, e := range r.Emotions[1:] {
		if e.Score > best.Score {
			best = e
		}
	}
	return best, nil
}

func (h *HTTPClient) post(ctx context.Context, url string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
