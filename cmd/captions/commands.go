package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/heimdex/heimdex-captions/internal/api"
	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/catalog"
	"github.com/heimdex/heimdex-captions/internal/config"
	"github.com/heimdex/heimdex-captions/internal/export"
	"github.com/heimdex/heimdex-captions/internal/project"
	"github.com/heimdex/heimdex-captions/internal/timeline"
	"github.com/heimdex/heimdex-captions/internal/watcher"
)

type generateFlags struct {
	Words string
	Audio string
	Video string
	Title string
}

func (f generateFlags) Validate() error {
	if f.Words == "" {
		return errors.New("-words is required")
	}
	if f.Audio == "" {
		return errors.New("-audio is required")
	}
	return nil
}

func parseGenerateFlags(fs *flag.FlagSet, args []string) (generateFlags, error) {
	var f generateFlags
	fs.StringVar(&f.Words, "words", "", "path to a word-level transcript JSON file")
	fs.StringVar(&f.Audio, "audio", "", "path to the source audio file")
	fs.StringVar(&f.Video, "video", "", "optional path to the source video file")
	fs.StringVar(&f.Title, "title", "", "project title")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: generate -words WORDS.json -audio AUDIO [-video VIDEO] [-title TITLE]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	return f, f.Validate()
}

type loadFlags struct {
	Project string
}

func parseLoadFlags(fs *flag.FlagSet, args []string) (loadFlags, error) {
	var f loadFlags
	fs.StringVar(&f.Project, "project", "", "project directory (default: latest project)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: load [-project DIR]")
		fs.PrintDefaults()
	}
	err := fs.Parse(args)
	return f, err
}

type exportFlags struct {
	Project     string
	Out         string
	EmotionTags bool
}

func (f exportFlags) Validate() error {
	if f.Out == "" {
		return errors.New("-out is required")
	}
	return nil
}

func parseExportFlags(fs *flag.FlagSet, args []string) (exportFlags, error) {
	var f exportFlags
	fs.StringVar(&f.Project, "project", "", "project directory (default: latest project)")
	fs.StringVar(&f.Out, "out", "", "existing directory to write the .srt file into")
	fs.BoolVar(&f.EmotionTags, "emotion-tags", false, "prefix each cue with its emotion label")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: export -out DIR [-project DIR] [-emotion-tags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	return f, f.Validate()
}

func runGenerate(ctx context.Context, f generateFlags, stdout io.Writer) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	database, _, svc, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer database.Close()

	p, err := svc.Generate(ctx, catalog.GenerateRequest{
		Title:     f.Title,
		AudioPath: f.Audio,
		VideoPath: f.Video,
		WordsPath: f.Words,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "created project %s with %d captions\n%s\n", p.ID, p.CaptionCount, p.Dir)
	return nil
}

type loadOutput struct {
	*project.Project
	Captions []captions.Caption `json:"captions"`
}

func runLoad(ctx context.Context, f loadFlags, stdout io.Writer) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := openProject(ctx, a.store, f.Project)
	if err != nil {
		return err
	}

	out := loadOutput{Project: p, Captions: p.Captions}
	if out.Captions == nil {
		out.Captions = []captions.Caption{}
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runExport(ctx context.Context, f exportFlags, stdout io.Writer) error {
	if err := export.ValidateOutputDir(f.Out); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := openProject(ctx, a.store, f.Project)
	if err != nil {
		return err
	}

	path, err := export.WriteSRT(f.Out, p.Name, p.Captions, export.SRTOptions{EmotionTags: f.EmotionTags})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)
	return nil
}

// openProject opens dir, or the most recently modified project when dir is empty.
func openProject(ctx context.Context, store *project.Store, dir string) (*project.Project, error) {
	if dir == "" {
		return store.Latest(ctx)
	}
	return store.Open(ctx, dir)
}

func runServe(ctx context.Context, stdout io.Writer) error {
	startTime := time.Now()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	logger.Info("starting heimdex captions",
		"version", config.Version,
		"port", a.cfg.Port(),
		"data_dir", a.cfg.DataDir(),
		"provider", a.cfg.CapabilityProvider(),
	)

	database, repo, svc, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer database.Close()

	authToken, err := ensureAuthToken(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	if n, err := svc.SyncProjects(ctx); err != nil {
		logger.Warn("failed to index projects", "error", err)
	} else {
		logger.Info("indexed projects", "count", n)
	}

	go func() {
		initCtx, cancel := context.WithTimeout(ctx, a.cfg.CapabilityTimeout())
		defer cancel()
		if err := a.caps.Init(initCtx); err != nil {
			logger.Warn("capabilities unavailable, using fallbacks", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := catalog.NewRunner(svc, repo, logger)
	go runner.Start(runCtx)

	poller := watcher.NewPoller(a.cfg.ProjectsDir(), watcher.Options{
		Document: timeline.DocumentFile,
		Logger:   logger,
	})
	poller.OnChange(func(events []watcher.Event) {
		if _, err := svc.SyncProjects(runCtx); err != nil {
			logger.Warn("failed to reindex projects", "changes", len(events), "error", err)
		}
	})
	go func() {
		if err := poller.Watch(runCtx); err != nil {
			logger.Warn("project watcher stopped", "error", err)
		}
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Port:         a.cfg.Port(),
		Service:      svc,
		Repository:   repo,
		Runner:       runner,
		Capabilities: a.caps,
		Logger:       logger,
		StartTime:    startTime,
		Version:      config.Version,
	})

	printBanner(stdout, a.cfg.Port(), authToken, a.cfg.ProjectsDir())

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func printBanner(w io.Writer, port int, token, projectsDir string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  %-57s║\n", "HEIMDEX CAPTIONS v"+config.Version)
	fmt.Fprintln(w, "╠═══════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  API URL:    http://127.0.0.1:%-28d║\n", port)
	fmt.Fprintf(w, "║  Auth Token: %-45s║\n", token)
	fmt.Fprintf(w, "║  Projects:   %-45s║\n", projectsDir)
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}
