package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
)

// LatestReport returns the report artifact in dir with the newest
// modification time. Equal times are broken by the lexically greatest path.
func LatestReport(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w in %s", ErrNoReport, dir)
		}
		return "", fmt.Errorf("failed to read report directory: %w", err)
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, report.FilePrefix) || !strings.HasSuffix(name, report.FileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		mod := info.ModTime()
		if best == "" || mod.After(bestMod) || (mod.Equal(bestMod) && path > best) {
			best, bestMod = path, mod
		}
	}

	if best == "" {
		return "", fmt.Errorf("%w in %s", ErrNoReport, dir)
	}
	return best, nil
}
