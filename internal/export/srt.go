package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/heimdex-captions/internal/captions"
)

// SRTOptions controls subtitle rendering.
type SRTOptions struct {
	// EmotionTags prefixes each cue with its emotion, e.g. "[happy] ".
	EmotionTags bool
}

// GenerateSRT renders captions as a SubRip document. Cues are numbered from 1
// in input order.
func GenerateSRT(caps []captions.Caption, opts SRTOptions) string {
	var b strings.Builder
	for i, c := range caps {
		text := strings.TrimSpace(c.Text)
		if opts.EmotionTags && c.Emotion != "" {
			text = fmt.Sprintf("[%s] %s", c.Emotion, text)
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, secondsToTimecode(c.Start), secondsToTimecode(c.End), text)
	}
	return b.String()
}

// secondsToTimecode formats seconds as HH:MM:SS,mmm. Negative input clamps to 0.
func secondsToTimecode(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMs := int64(math.Round(seconds * 1000))
	ms := totalMs % 1000
	totalSeconds := totalMs / 1000
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

// OutputPath returns <dir>/<sanitised name>.srt after validating dir.
func OutputPath(dir, name string) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName(name)+".srt"), nil
}

// WriteSRT renders caps into <dir>/<name>.srt and returns the written path.
func WriteSRT(dir, name string, caps []captions.Caption, opts SRTOptions) (string, error) {
	path, err := OutputPath(dir, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(GenerateSRT(caps, opts)), 0o644); err != nil {
		return "", fmt.Errorf("write srt: %w", err)
	}
	return path, nil
}
