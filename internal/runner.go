package internal

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kamaw/photodup/internal/fingerprint"
	"github.com/kamaw/photodup/internal/metrics"
	"github.com/kamaw/photodup/pkg"
)

// Runner executes one full deduplication run: validate, scan, group,
// resolve, relocate. The shell that owns it decides where it runs;
// progress only ever flows out through notify, invoked synchronously.
type Runner struct {
	logger     *zap.Logger
	metrics    *metrics.Metrics
	fp         *fingerprint.Fingerprinter
	sourceDirs []string
	exactOnly  bool
	threshold  float64
	dryRun     bool
	numWorkers int
	notify     func(string)
}

func NewRunner(logger *zap.Logger, mx *metrics.Metrics, fp *fingerprint.Fingerprinter,
	sourceDirs []string, exactOnly bool, threshold float64, dryRun bool,
	numWorkers int, notify func(string)) *Runner {
	return &Runner{
		logger:     logger,
		metrics:    mx,
		fp:         fp,
		sourceDirs: sourceDirs,
		exactOnly:  exactOnly,
		threshold:  threshold,
		dryRun:     dryRun,
		numWorkers: numWorkers,
		notify:     notify,
	}
}

// Run returns the holding directories that received moved files.
// Validation failures and an unreadable source root abort the run
// before any file is touched; everything else is handled per file.
func (r *Runner) Run() ([]string, error) {
	start := time.Now()
	defer func() {
		r.logger.Info("elapsed time", zap.Duration("elapsed", time.Since(start)))
	}()

	if err := r.validate(); err != nil {
		return nil, err
	}

	if r.dryRun {
		r.logger.Info("running in DRY-RUN mode: duplicate files will not be moved")
	}

	records, err := pkg.Scan(r.logger, r.fp, r.sourceDirs, r.numWorkers, r.notify)
	if err != nil {
		return nil, fmt.Errorf("scanning source directories: %w", err)
	}

	groups := pkg.Group(records, r.exactOnly, r.threshold)
	r.say(fmt.Sprintf("found %d duplicate groups across %d files", len(groups), len(records)))

	relocator := pkg.NewRelocator(r.logger, r.metrics, r.dryRun)

	touched := make(map[string]bool)
	var planned int
	for _, g := range groups {
		decision := pkg.Resolve(g)
		planned += len(decision.Moves)
		for _, dir := range relocator.Apply(decision) {
			touched[dir] = true
		}
	}

	dirs := make([]string, 0, len(touched))
	for d := range touched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	r.say(fmt.Sprintf("done: %d duplicates resolved in %d groups, %d holding directories touched",
		planned, len(groups), len(dirs)))

	return dirs, nil
}

func (r *Runner) say(msg string) {
	r.logger.Info(msg)
	if r.notify != nil {
		r.notify(msg)
	}
}

func (r *Runner) validate() error {
	if len(r.sourceDirs) == 0 {
		return errors.New("no source directories configured")
	}

	if !r.exactOnly && (r.threshold < 0 || r.threshold > 0.99) {
		return fmt.Errorf("similarity threshold %.2f outside [0, 0.99]", r.threshold)
	}

	for _, dir := range r.sourceDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("source directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source path %s is not a directory", dir)
		}
	}

	return nil
}
