package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

const emotionPrompt = `Classify the dominant emotion expressed by the caption text.
Answer with exactly one label from the allowed set and a confidence score between 0 and 1.
Use "neutral" when no emotion is clearly expressed.`

// retryWaits is the pause before each retry of a rate limited or failed call.
var retryWaits = []time.Duration{2 * time.Second, 5 * time.Second}

// OpenAIConfig selects the OpenAI models and endpoint.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	EmotionModel   string
}

func newOpenAIClient(cfg OpenAIConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)
	return &client, nil
}

// OpenAIEmbedder embeds texts with the Embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.EmbeddingModel == "" {
		return nil, errors.New("openai embedding model is empty")
	}
	return &OpenAIEmbedder{client: client, model: cfg.EmbeddingModel}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}

	var resp *openai.CreateEmbeddingResponse
	err := withRetry(ctx, func() error {
		var err error
		resp, err = e.client.Embeddings.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
	}
	return out, nil
}

type emotionResponse struct {
	Label string  `json:"label" jsonschema:"enum=joy,enum=sadness,enum=anger,enum=fear,enum=surprise,enum=disgust,enum=neutral"`
	Score float64 `json:"score"`
}

var emotionSchema = generateSchema[emotionResponse]()

// OpenAIClassifier classifies caption emotion with the Responses API and a
// strict JSON schema.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIClassifier(cfg OpenAIConfig) (*OpenAIClassifier, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.EmotionModel == "" {
		return nil, errors.New("openai emotion model is empty")
	}
	return &OpenAIClassifier{client: client, model: cfg.EmotionModel}, nil
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (captions.Label, error) {
	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(64),
		Instructions:    openai.String(emotionPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "CaptionEmotion",
					Schema:      emotionSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Caption emotion label JSON"),
					Type:        "json_schema",
				},
			},
		},
	}

	var resp *responses.Response
	err := withRetry(ctx, func() error {
		var err error
		resp, err = c.client.Responses.New(ctx, params)
		return err
	})
	if err != nil {
		return captions.Label{}, err
	}

	var out emotionResponse
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return captions.Label{}, err
	}
	return captions.Label{Name: out.Label, Score: out.Score}, nil
}

func withRetry(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		if attempt >= len(retryWaits) || !(isRateLimitError(err) || isServerError(err)) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryWaits[attempt]):
		}
	}
}

func isRateLimitError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// decodeModelJSON unmarshals s, falling back to the outermost {...} span
// when the model wrapped its answer in prose.
func decodeModelJSON(s string, v any) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("empty model output")
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in model output (len=%d)", len(s))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("unmarshal model output: %w", err)
	}
	return nil
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		panic(err)
	}
	strictObjects(schema)
	return schema
}

// strictObjects marks every object schema closed with all properties required.
func strictObjects(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok && len(props) > 0 {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			schema["required"] = required
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if m, ok := p.(map[string]any); ok {
				strictObjects(m)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		strictObjects(items)
	}
}
