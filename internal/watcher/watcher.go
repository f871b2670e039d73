// Package watcher polls a projects directory and reports project folders that
// appear, change or disappear, so the index can be rebuilt from disk.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/heimdex/heimdex-captions/internal/logging"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event names one project directory that changed between polls.
type Event struct {
	Dir  string
	Type EventType
}

// DefaultInterval is used when Options.Interval is zero.
const DefaultInterval = 5 * time.Second

type Options struct {
	// Document is the file whose presence marks a directory as a project.
	Document string
	Interval time.Duration
	Logger   *slog.Logger
}

// Poller snapshots immediate subdirectories of a root and diffs them on each
// tick. Directories starting with "." are skipped.
type Poller struct {
	root     string
	document string
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	callback func([]Event)
	last     map[string]time.Time
}

func NewPoller(root string, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Poller{
		root:     root,
		document: opts.Document,
		interval: opts.Interval,
		logger:   logging.WithComponent(logging.OrDiscard(opts.Logger), "watcher"),
	}
}

// OnChange registers the callback invoked with each non-empty batch of events.
func (p *Poller) OnChange(callback func(events []Event)) {
	p.mu.Lock()
	p.callback = callback
	p.mu.Unlock()
}

// Watch takes an initial snapshot and polls until ctx is cancelled. The
// initial snapshot does not produce events.
func (p *Poller) Watch(ctx context.Context) error {
	snap, err := p.snapshot()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()

	p.logger.Info("watching projects", "root", p.root, "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll diffs the directory against the previous snapshot and dispatches any
// events. It returns the events it found.
func (p *Poller) Poll() []Event {
	snap, err := p.snapshot()
	if err != nil {
		p.logger.Warn("failed to scan projects", "error", err)
		return nil
	}

	p.mu.Lock()
	events := diff(p.last, snap)
	p.last = snap
	callback := p.callback
	p.mu.Unlock()

	if len(events) > 0 {
		p.logger.Debug("project changes detected", "count", len(events))
		if callback != nil {
			callback(events)
		}
	}
	return events
}

// snapshot maps each project directory to its document mtime.
func (p *Poller) snapshot() (map[string]time.Time, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]time.Time{}, nil
		}
		return nil, err
	}

	snap := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(p.root, e.Name())
		target := dir
		if p.document != "" {
			target = filepath.Join(dir, p.document)
		}
		info, err := os.Stat(target)
		if err != nil {
			continue
		}
		snap[dir] = info.ModTime()
	}
	return snap, nil
}

func diff(before, after map[string]time.Time) []Event {
	var events []Event
	for dir, mod := range after {
		prev, ok := before[dir]
		switch {
		case !ok:
			events = append(events, Event{Dir: dir, Type: EventCreate})
		case !prev.Equal(mod):
			events = append(events, Event{Dir: dir, Type: EventModify})
		}
	}
	for dir := range before {
		if _, ok := after[dir]; !ok {
			events = append(events, Event{Dir: dir, Type: EventDelete})
		}
	}
	return events
}
