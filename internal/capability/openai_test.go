package capability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEmotionSchema_IsStrict(t *testing.T) {
	if emotionSchema["type"] != "object" {
		t.Fatalf("schema type = %v, want object", emotionSchema["type"])
	}
	if emotionSchema["additionalProperties"] != false {
		t.Error("additionalProperties must be false")
	}
	required, ok := emotionSchema["required"].([]string)
	if !ok || len(required) != 2 {
		t.Fatalf("required = %v, want label and score", emotionSchema["required"])
	}

	props := emotionSchema["properties"].(map[string]any)
	label := props["label"].(map[string]any)
	enum, ok := label["enum"].([]any)
	if !ok {
		t.Fatalf("label enum = %v", label["enum"])
	}
	if len(enum) != 7 {
		t.Errorf("label enum has %d values, want 7", len(enum))
	}
}

func TestDecodeModelJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"label":"joy","score":0.9}`, "joy", false},
		{"wrapped", "Sure:\n{\"label\":\"anger\",\"score\":0.5}\nDone.", "anger", false},
		{"empty", "  ", "", true},
		{"no object", "joy", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out emotionResponse
			err := decodeModelJSON(tt.in, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeModelJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if out.Label != tt.want {
				t.Errorf("label = %q, want %q", out.Label, tt.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	saved := retryWaits
	retryWaits = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { retryWaits = saved }()

	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("POST /embeddings: 429 Too Many Requests")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("withRetry() = %v after %d calls, want success after 3", err, calls)
	}

	calls = 0
	err = withRetry(context.Background(), func() error {
		calls++
		return errors.New("401 unauthorized")
	})
	if err == nil || calls != 1 {
		t.Errorf("withRetry() on auth error = %v after %d calls, want failure after 1", err, calls)
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"text-embedding-3-small"`) {
			t.Errorf("request body = %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, EmbeddingModel: "text-embedding-3-small"})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}
	got, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got[0][0] != 1 || got[1][1] != 1 {
		t.Errorf("Embed() = %v, want results ordered by index", got)
	}
}

func TestNewOpenAI_RequiresKeyAndModel(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{EmbeddingModel: "m"}); err == nil {
		t.Error("NewOpenAIEmbedder() without key: expected error")
	}
	if _, err := NewOpenAIClassifier(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Error("NewOpenAIClassifier() without model: expected error")
	}
}
