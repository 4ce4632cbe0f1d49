package pkg

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kamaw/photodup/internal/fingerprint"
	"github.com/kamaw/photodup/internal/fs"
	"github.com/kamaw/photodup/internal/models"
)

// Scan walks the source directories and fingerprints every candidate
// image using numWorkers parallel fingerprinters. Results are re-sorted
// into walk order before being returned, so grouping downstream is
// deterministic regardless of worker completion order.
func Scan(logger *zap.Logger, fp *fingerprint.Fingerprinter, roots []string, numWorkers int, notify func(string)) ([]models.PhotoRecord, error) {
	total := fs.Count(roots)
	logger.Info("scanning", zap.Strings("roots", roots), zap.Int("total_files", total))

	progress := func(done int) {
		if notify != nil {
			notify(fmt.Sprintf("progress: %d/%d files", done, total))
		}
	}

	candidates := fs.Walk(logger, roots, progress)

	if numWorkers < 1 {
		numWorkers = 1
	}
	workers := make([]<-chan models.PhotoRecord, numWorkers)
	for i := 0; i < numWorkers; i++ {
		workers[i] = fingerprintWorker(logger, fp, candidates)
	}

	done := make(chan struct{})
	defer close(done)

	var records []models.PhotoRecord
	var walkErr error
	for r := range Merge(done, workers...) {
		if r.Err != nil {
			walkErr = r.Err
			continue
		}
		records = append(records, r)
	}
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Index < records[j].Index
	})

	if notify != nil {
		notify(fmt.Sprintf("scanned %d candidate images", len(records)))
	}

	return records, nil
}

// fingerprintWorker consumes candidates and emits fingerprinted
// records. A file that cannot be fingerprinted is logged and dropped
// from the run; only walk failures propagate.
func fingerprintWorker(logger *zap.Logger, fp *fingerprint.Fingerprinter, candidates <-chan fs.Candidate) <-chan models.PhotoRecord {
	out := make(chan models.PhotoRecord)

	go func() {
		defer close(out)

		for c := range candidates {
			if c.Err != nil {
				out <- models.PhotoRecord{Err: c.Err}
				continue
			}

			rec, err := fp.Record(c.Path, c.Info)
			if err != nil {
				logger.Warn("skipping unreadable file", zap.String("path", c.Path), zap.Error(err))
				continue
			}

			logger.Debug("processed file", zap.String("path", c.Path))

			rec.Index = c.Index
			out <- rec
		}
	}()

	return out
}
