package scripting

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Watcher polls a script directory and reports files whose contents changed.
// Paths are sent relative to the directory, slash separated.
type Watcher struct {
	dir      string
	ext      string
	interval time.Duration
	log      *zap.Logger
	sums     map[string]uint64
	primed   bool
}

func NewWatcher(dir, ext string, interval time.Duration, log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Watcher{dir: dir, ext: ext, interval: interval, log: log, sums: make(map[string]uint64)}
}

// Scan hashes every script and returns the paths that were added, changed or
// deleted since the previous scan. The first scan only records state.
func (w *Watcher) Scan() ([]string, error) {
	seen := make(map[string]uint64, len(w.sums))
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || (w.ext != "" && filepath.Ext(path) != w.ext) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return nil
		}
		seen[normalize(rel)] = xxhash.Sum64(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var changed []string
	if w.primed {
		for p, sum := range seen {
			if old, ok := w.sums[p]; !ok || old != sum {
				changed = append(changed, p)
			}
		}
		for p := range w.sums {
			if _, ok := seen[p]; !ok {
				changed = append(changed, p)
			}
		}
	}
	sort.Strings(changed)
	w.sums = seen
	w.primed = true
	return changed, nil
}

// Run scans on every tick and sends changed paths until ctx is done.
func (w *Watcher) Run(ctx context.Context, out chan<- string) error {
	if _, err := w.Scan(); err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := w.Scan()
			if err != nil {
				w.log.Warn("script scan failed", zap.String("dir", w.dir), zap.Error(err))
				continue
			}
			for _, p := range changed {
				w.log.Debug("script changed", zap.String("path", p))
				select {
				case out <- p:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
