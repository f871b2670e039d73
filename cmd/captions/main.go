package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/heimdex/heimdex-captions/internal/api"
	"github.com/heimdex/heimdex-captions/internal/capability"
	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/catalog"
	"github.com/heimdex/heimdex-captions/internal/config"
	"github.com/heimdex/heimdex-captions/internal/db"
	"github.com/heimdex/heimdex-captions/internal/logging"
	"github.com/heimdex/heimdex-captions/internal/project"
	"github.com/heimdex/heimdex-captions/internal/timeline"
)

const usage = `Usage:
  %[1]s generate -words WORDS.json -audio AUDIO [-video VIDEO] [-title TITLE]
  %[1]s load [-project DIR]
  %[1]s export -out DIR [-project DIR] [-emotion-tags]
  %[1]s serve
  %[1]s version
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	name := filepath.Base(os.Args[0])
	if len(args) == 0 {
		fmt.Fprintf(stderr, usage, name)
		return 2
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "generate":
		err = withFlags(parseGenerateFlags, rest, stderr, func(f generateFlags) error { return runGenerate(ctx, f, stdout) })
	case "load":
		err = withFlags(parseLoadFlags, rest, stderr, func(f loadFlags) error { return runLoad(ctx, f, stdout) })
	case "export":
		err = withFlags(parseExportFlags, rest, stderr, func(f exportFlags) error { return runExport(ctx, f, stdout) })
	case "serve":
		err = runServe(ctx, stdout)
	case "version":
		fmt.Fprintf(stdout, "heimdex-captions %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
	case "help", "-h", "--help":
		fmt.Fprintf(stdout, usage, name)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n"+usage, cmd, name)
		return 2
	}

	var uerr usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &uerr):
		fmt.Fprintln(stderr, err)
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

// withFlags parses args with parse and runs fn on the result.
func withFlags[F any](parse func(*flag.FlagSet, []string) (F, error), args []string, stderr io.Writer, fn func(F) error) error {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f, err := parse(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err}
	}
	return fn(f)
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// app holds the components every command shares.
type app struct {
	cfg       *config.EnvConfig
	logger    *slog.Logger
	caps      *capability.Set
	assembler *captions.Assembler
	store     *project.Store
}

func newApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLoggerTo(os.Stderr, cfg.LogLevel())

	caps, err := capability.New(capabilitySettings(cfg, logger))
	if err != nil {
		return nil, err
	}

	assembler, err := captions.NewAssembler(cfg.CaptionOptions(), caps.Scorer(), caps.Classifier(), logger)
	if err != nil {
		caps.Close()
		return nil, err
	}

	store, err := project.NewStore(cfg.ProjectsDir(), timeline.Options{}, logger)
	if err != nil {
		caps.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, caps: caps, assembler: assembler, store: store}, nil
}

func capabilitySettings(cfg config.Config, logger *slog.Logger) capability.Settings {
	return capability.Settings{
		Provider: cfg.CapabilityProvider(),
		Timeout:  cfg.CapabilityTimeout(),
		OpenAI: capability.OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey(),
			BaseURL:        cfg.OpenAIBaseURL(),
			EmbeddingModel: cfg.EmbeddingModel(),
			EmotionModel:   cfg.EmotionModel(),
		},
		EmbeddingURL: cfg.EmbeddingURL(),
		EmotionURL:   cfg.EmotionURL(),
		Python: capability.PythonConfig{
			PythonPath:    cfg.PipelinesPython(),
			ModuleName:    cfg.PipelinesModule(),
			WorkDir:       cfg.WorkDir(),
			DoctorTimeout: cfg.CapabilityTimeout(),
			Logger:        logger,
		},
		Logger: logger,
	}
}

func (a *app) Close() {
	if err := a.caps.Close(); err != nil {
		a.logger.Warn("failed to close capabilities", "error", err)
	}
}

// openCatalog opens the index database and the service over it.
func (a *app) openCatalog() (*db.DB, *catalog.SQLiteRepository, *catalog.Service, error) {
	database, err := db.New(a.cfg.DBPath(), a.logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := catalog.NewRepository(database.Conn())
	svc := catalog.NewService(repo, a.store, a.assembler, a.logger)
	return database, repo, svc, nil
}

func ensureAuthToken(ctx context.Context, repo catalog.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
