// Package config provides configuration management for heimdex-captions.
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

const (
	// Default values
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".heimdex"

	// Environment variable names
	EnvPort        = "HEIMDEX_PORT"
	EnvLogLevel    = "HEIMDEX_LOG_LEVEL"
	EnvDataDir     = "HEIMDEX_DATA_DIR"
	EnvConfigFile  = "HEIMDEX_CONFIG_FILE"
	EnvProjectsDir = "HEIMDEX_PROJECTS_DIR"

	// Caption assembly
	EnvSemanticChunking     = "HEIMDEX_SEMANTIC_CHUNKING"
	EnvSimilarityThreshold  = "HEIMDEX_SIMILARITY_THRESHOLD"
	EnvMaxSentencesPerChunk = "HEIMDEX_MAX_SENTENCES_PER_CHUNK"
	EnvMaxPauseGap          = "HEIMDEX_MAX_PAUSE_GAP"
	EnvMaxWordsPerSentence  = "HEIMDEX_MAX_WORDS_PER_SENTENCE"
	EnvAdvancedEmotions     = "HEIMDEX_ADVANCED_EMOTIONS"

	// Capability providers
	EnvCapabilityProvider = "HEIMDEX_CAPABILITY_PROVIDER"
	EnvCapabilityTimeout  = "HEIMDEX_CAPABILITY_TIMEOUT"
	EnvOpenAIAPIKey       = "HEIMDEX_OPENAI_API_KEY"
	EnvOpenAIAPIKeyShared = "OPENAI_API_KEY"
	EnvOpenAIBaseURL      = "HEIMDEX_OPENAI_BASE_URL"
	EnvEmbeddingModel     = "HEIMDEX_EMBEDDING_MODEL"
	EnvEmotionModel       = "HEIMDEX_EMOTION_MODEL"
	EnvEmbeddingURL       = "HEIMDEX_EMBEDDING_URL"
	EnvEmotionURL         = "HEIMDEX_EMOTION_URL"
	EnvPipelinesPython    = "HEIMDEX_PIPELINES_PYTHON"
	EnvPipelinesModule    = "HEIMDEX_PIPELINES_MODULE"

	// File names under the data directory
	DBFilename     = "heimdex.db"
	ConfigFilename = "config.yaml"
	ProjectsFolder = "capcut_projects"
	WorkFolder     = "work"

	DefaultCapabilityProvider = "none"
	DefaultCapabilityTimeout  = 30 // seconds
	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultEmotionModel       = "gpt-4o-mini"
	DefaultPipelinesModule    = "heimdex_caption_models"
)

var validProviders = []string{"none", "openai", "http", "python"}

// ConfigurationError reports an invalid configuration value.
type ConfigurationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s=%q: %s", e.Key, e.Value, e.Reason)
}

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ProjectsDir() string
	WorkDir() string
	ConfigFile() string
	CaptionOptions() captions.Options
	CapabilityProvider() string
	CapabilityTimeout() time.Duration
	OpenAIAPIKey() string
	OpenAIBaseURL() string
	EmbeddingModel() string
	EmotionModel() string
	EmbeddingURL() string
	EmotionURL() string
	PipelinesPython() string
	PipelinesModule() string
}

// fileConfig is the YAML file layout. Pointer fields distinguish unset keys
// from zero values.
type fileConfig struct {
	Port        *int   `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DataDir     string `yaml:"data_dir"`
	ProjectsDir string `yaml:"projects_dir"`
	Captions    struct {
		SemanticChunking     *bool    `yaml:"semantic_chunking"`
		SimilarityThreshold  *float64 `yaml:"similarity_threshold"`
		MaxSentencesPerChunk *int     `yaml:"max_sentences_per_chunk"`
		MaxPauseGap          *float64 `yaml:"max_pause_gap"`
		MaxWordsPerSentence  *int     `yaml:"max_words_per_sentence"`
		AdvancedEmotions     *bool    `yaml:"advanced_emotions"`
	} `yaml:"captions"`
	Capability struct {
		Provider string `yaml:"provider"`
		Timeout  *int   `yaml:"timeout"`
		OpenAI   struct {
			APIKey         string `yaml:"api_key"`
			BaseURL        string `yaml:"base_url"`
			EmbeddingModel string `yaml:"embedding_model"`
			EmotionModel   string `yaml:"emotion_model"`
		} `yaml:"openai"`
		HTTP struct {
			EmbeddingURL string `yaml:"embedding_url"`
			EmotionURL   string `yaml:"emotion_url"`
		} `yaml:"http"`
		Python struct {
			Python string `yaml:"python"`
			Module string `yaml:"module"`
		} `yaml:"python"`
	} `yaml:"capability"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port        int
	logLevel    string
	dataDir     string
	projectsDir string
	configFile  string

	captions captions.Options

	provider       string
	timeoutSeconds int
	openAIAPIKey   string
	openAIBaseURL  string
	embeddingModel string
	emotionModel   string
	embeddingURL   string
	emotionURL     string

	pipelinesPython string
	pipelinesModule string
}

// New creates a new EnvConfig from defaults, the YAML file and environment
// variable overrides.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		captions:       captions.DefaultOptions(),
		provider:       DefaultCapabilityProvider,
		timeoutSeconds: DefaultCapabilityTimeout,
		embeddingModel: DefaultEmbeddingModel,
		emotionModel:   DefaultEmotionModel,
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile applies HEIMDEX_CONFIG_FILE, or <data_dir>/config.yaml when it
// exists. An explicitly named file must exist.
func (c *EnvConfig) loadFile() error {
	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(c.dataDir, ConfigFilename)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.configFile = path
	c.applyFile(&fc)
	return nil
}

func (c *EnvConfig) applyFile(fc *fileConfig) {
	if fc.Port != nil {
		c.port = *fc.Port
	}
	setString(&c.logLevel, fc.LogLevel)
	if os.Getenv(EnvDataDir) == "" {
		setString(&c.dataDir, fc.DataDir)
	}
	setString(&c.projectsDir, fc.ProjectsDir)

	fcc := fc.Captions
	if fcc.SemanticChunking != nil {
		c.captions.SemanticChunking = *fcc.SemanticChunking
	}
	if fcc.SimilarityThreshold != nil {
		c.captions.SimilarityThreshold = *fcc.SimilarityThreshold
	}
	if fcc.MaxSentencesPerChunk != nil {
		c.captions.MaxSentencesPerChunk = *fcc.MaxSentencesPerChunk
	}
	if fcc.MaxPauseGap != nil {
		c.captions.MaxPauseGap = *fcc.MaxPauseGap
	}
	if fcc.MaxWordsPerSentence != nil {
		c.captions.MaxWordsPerSentence = *fcc.MaxWordsPerSentence
	}
	if fcc.AdvancedEmotions != nil {
		c.captions.AdvancedEmotions = *fcc.AdvancedEmotions
	}

	fcp := fc.Capability
	setString(&c.provider, fcp.Provider)
	if fcp.Timeout != nil {
		c.timeoutSeconds = *fcp.Timeout
	}
	setString(&c.openAIAPIKey, fcp.OpenAI.APIKey)
	setString(&c.openAIBaseURL, fcp.OpenAI.BaseURL)
	setString(&c.embeddingModel, fcp.OpenAI.EmbeddingModel)
	setString(&c.emotionModel, fcp.OpenAI.EmotionModel)
	setString(&c.embeddingURL, fcp.HTTP.EmbeddingURL)
	setString(&c.emotionURL, fcp.HTTP.EmotionURL)
	setString(&c.pipelinesPython, fcp.Python.Python)
	setString(&c.pipelinesModule, fcp.Python.Module)
}

func (c *EnvConfig) loadEnv() error {
	if err := envInt(EnvPort, &c.port); err != nil {
		return err
	}
	setString(&c.logLevel, os.Getenv(EnvLogLevel))
	setString(&c.projectsDir, os.Getenv(EnvProjectsDir))

	if err := envBool(EnvSemanticChunking, &c.captions.SemanticChunking); err != nil {
		return err
	}
	if err := envFloat(EnvSimilarityThreshold, &c.captions.SimilarityThreshold); err != nil {
		return err
	}
	if err := envInt(EnvMaxSentencesPerChunk, &c.captions.MaxSentencesPerChunk); err != nil {
		return err
	}
	if err := envFloat(EnvMaxPauseGap, &c.captions.MaxPauseGap); err != nil {
		return err
	}
	if err := envInt(EnvMaxWordsPerSentence, &c.captions.MaxWordsPerSentence); err != nil {
		return err
	}
	if err := envBool(EnvAdvancedEmotions, &c.captions.AdvancedEmotions); err != nil {
		return err
	}

	setString(&c.provider, strings.ToLower(os.Getenv(EnvCapabilityProvider)))
	if err := envInt(EnvCapabilityTimeout, &c.timeoutSeconds); err != nil {
		return err
	}
	setString(&c.openAIAPIKey, os.Getenv(EnvOpenAIAPIKeyShared))
	setString(&c.openAIAPIKey, os.Getenv(EnvOpenAIAPIKey))
	setString(&c.openAIBaseURL, os.Getenv(EnvOpenAIBaseURL))
	setString(&c.embeddingModel, os.Getenv(EnvEmbeddingModel))
	setString(&c.emotionModel, os.Getenv(EnvEmotionModel))
	setString(&c.embeddingURL, os.Getenv(EnvEmbeddingURL))
	setString(&c.emotionURL, os.Getenv(EnvEmotionURL))
	setString(&c.pipelinesPython, os.Getenv(EnvPipelinesPython))
	setString(&c.pipelinesModule, os.Getenv(EnvPipelinesModule))
	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return &ConfigurationError{Key: EnvPort, Value: strconv.Itoa(c.port), Reason: "port must be between 1 and 65535"}
	}
	if c.timeoutSeconds < 1 {
		return &ConfigurationError{Key: EnvCapabilityTimeout, Value: strconv.Itoa(c.timeoutSeconds), Reason: "must be at least 1 second"}
	}
	if !isValidProvider(c.provider) {
		return &ConfigurationError{
			Key:    EnvCapabilityProvider,
			Value:  c.provider,
			Reason: "must be one of " + strings.Join(validProviders, ", "),
		}
	}

	var optErr *captions.ConfigurationError
	if err := c.captions.Validate(); err != nil {
		if errors.As(err, &optErr) {
			return &ConfigurationError{Key: envForOption(optErr.Field), Value: fmt.Sprint(optErr.Value), Reason: optErr.Reason}
		}
		return err
	}
	return nil
}

func envForOption(field string) string {
	switch field {
	case "max_pause_gap":
		return EnvMaxPauseGap
	case "max_words_per_sentence":
		return EnvMaxWordsPerSentence
	case "similarity_threshold":
		return EnvSimilarityThreshold
	case "max_sentences_per_chunk":
		return EnvMaxSentencesPerChunk
	default:
		return field
	}
}

func isValidProvider(p string) bool {
	for _, v := range validProviders {
		if p == v {
			return true
		}
	}
	return false
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return &ConfigurationError{Key: key, Value: v, Reason: "not an integer"}
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return &ConfigurationError{Key: key, Value: v, Reason: "not a finite number"}
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return &ConfigurationError{Key: key, Value: v, Reason: "not a boolean"}
	}
	*dst = b
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ProjectsDir returns the directory holding project folders.
func (c *EnvConfig) ProjectsDir() string {
	if c.projectsDir != "" {
		return c.projectsDir
	}
	return filepath.Join(c.dataDir, ProjectsFolder)
}

// WorkDir returns the scratch directory for model subprocess files.
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, WorkFolder)
}

// ConfigFile returns the YAML file that was applied, or "".
func (c *EnvConfig) ConfigFile() string {
	return c.configFile
}

func (c *EnvConfig) CaptionOptions() captions.Options {
	return c.captions
}

func (c *EnvConfig) CapabilityProvider() string {
	return c.provider
}

func (c *EnvConfig) CapabilityTimeout() time.Duration {
	return time.Duration(c.timeoutSeconds) * time.Second
}

func (c *EnvConfig) OpenAIAPIKey() string {
	return c.openAIAPIKey
}

func (c *EnvConfig) OpenAIBaseURL() string {
	return c.openAIBaseURL
}

func (c *EnvConfig) EmbeddingModel() string {
	return c.embeddingModel
}

func (c *EnvConfig) EmotionModel() string {
	return c.emotionModel
}

func (c *EnvConfig) EmbeddingURL() string {
	return c.embeddingURL
}

func (c *EnvConfig) EmotionURL() string {
	return c.emotionURL
}

func (c *EnvConfig) PipelinesPython() string {
	return c.pipelinesPython
}

func (c *EnvConfig) PipelinesModule() string {
	if c.pipelinesModule != "" {
		return c.pipelinesModule
	}
	return DefaultPipelinesModule
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
