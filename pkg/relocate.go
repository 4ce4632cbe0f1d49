package pkg

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/kamaw/photodup/internal/metrics"
	"github.com/kamaw/photodup/internal/models"
)

// Relocator moves non-kept duplicates into their holding directories.
type Relocator struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	dryRun  bool
}

func NewRelocator(logger *zap.Logger, mx *metrics.Metrics, dryRun bool) *Relocator {
	return &Relocator{
		logger:  logger,
		metrics: mx,
		dryRun:  dryRun,
	}
}

// Apply executes every planned move in the decision. A failed move is
// logged and skipped, never aborting the rest of the group or the run.
// Returns the holding directories that actually received a file.
func (rl *Relocator) Apply(decision models.Decision) []string {
	touched := make(map[string]bool)

	for _, m := range decision.Moves {
		if rl.dryRun {
			rl.logger.Info("would move duplicate",
				zap.String("from", m.Record.Path),
				zap.String("to", m.Dest),
				zap.String("kept", decision.Keep.Path),
				zap.String("reason", decision.ReasonFor(m)))
			continue
		}

		dir := filepath.Dir(m.Dest)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			rl.logger.Error("cannot create holding directory",
				zap.String("dir", dir), zap.Error(err))
			continue
		}

		dest := m.Dest
		if _, err := os.Stat(dest); err == nil {
			// planned name got taken since resolution
			dest = NextFreeName(dir, filepath.Base(m.Record.Path), nil)
		}

		stop := rl.metrics.Record("move")
		err := move(m.Record.Path, dest)
		_ = stop()
		if err != nil {
			rl.logger.Error("cannot move duplicate",
				zap.String("from", m.Record.Path),
				zap.String("to", dest),
				zap.Error(err))
			continue
		}

		rl.logger.Info("moved duplicate",
			zap.String("relation", decision.Relation.String()),
			zap.String("from", m.Record.Path),
			zap.String("to", dest),
			zap.String("kept", decision.Keep.Path),
			zap.String("reason", decision.ReasonFor(m)))

		touched[dir] = true
	}

	dirs := make([]string, 0, len(touched))
	for d := range touched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	return dirs
}

// move renames src to dest, falling back to copy-then-delete when the
// rename fails (e.g. across volumes). The fallback writes the copy to
// a temp file and renames it into place before removing the source, so
// a crash never leaves a half-written destination or loses the file.
func move(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := atomic.WriteFile(dest, bufio.NewReader(f)); err != nil {
		return err
	}

	return os.Remove(src)
}
