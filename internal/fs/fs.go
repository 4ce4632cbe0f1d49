package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	BMP  = ".bmp"
	GIF  = ".gif"
	JPG  = ".jpg"
	JPEG = ".jpeg"
	PNG  = ".png"
)

var types = []string{BMP, GIF, JPG, JPEG, PNG}

// IsImage reports whether ext belongs to the allow-list. The check is
// case-insensitive.
func IsImage(ext string) bool {
	ext = strings.ToLower(ext)
	for _, t := range types {
		if ext == t {
			return true
		}
	}

	return false
}

// Candidate is one image file produced by the walk, numbered in walk
// order so downstream stages can restore a stable ordering after
// parallel fingerprinting. A fatal walk failure travels as a Candidate
// with Err set.
type Candidate struct {
	Index int
	Path  string
	Info  os.FileInfo
	Err   error
}

// Count returns the total number of files of any type under the roots,
// used as the denominator for progress reporting.
func Count(roots []string) int {
	var total int
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				total++
			}
			return nil
		})
	}

	return total
}

// Walk enumerates every allow-listed image under the roots, in root
// order then lexical directory order. An unreadable root aborts the
// walk with an error Candidate; unreadable children are logged and
// skipped. progress is called every 100 examined files.
func Walk(logger *zap.Logger, roots []string, progress func(done int)) <-chan Candidate {
	out := make(chan Candidate)

	go func() {
		defer close(out)

		var index, seen int
		for _, root := range roots {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					if path == root {
						return err
					}
					logger.Warn("cannot access path", zap.String("path", path), zap.Error(err))
					return nil
				}
				if d.IsDir() {
					return nil
				}

				seen++
				if progress != nil && seen%100 == 0 {
					progress(seen)
				}

				if !IsImage(filepath.Ext(d.Name())) {
					return nil
				}

				info, err := d.Info()
				if err != nil {
					logger.Warn("cannot stat file", zap.String("path", path), zap.Error(err))
					return nil
				}

				out <- Candidate{Index: index, Path: path, Info: info}
				index++
				return nil
			})

			if err != nil {
				out <- Candidate{Err: err}
				return
			}
		}
	}()

	return out
}
