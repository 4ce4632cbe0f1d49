package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kamaw/photodup/internal/models"
)

// HoldingDirSuffix is appended to a parent directory's name to form
// the holding directory for duplicates displaced from it.
const HoldingDirSuffix = "-duplicates"

// Resolve picks the record to keep and plans a destination for every
// other member. Members are ranked by effective date, then by filename
// length without extension, then by path; the first one stays in place.
func Resolve(group models.DuplicateGroup) models.Decision {
	ranked := make([]models.PhotoRecord, len(group.Records))
	copy(ranked, group.Records)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if da, db := a.EffectiveDate(), b.EffectiveDate(); !da.Equal(db) {
			return da.Before(db)
		}
		if la, lb := models.StemLen(a.Path), models.StemLen(b.Path); la != lb {
			return la < lb
		}
		return a.Path < b.Path
	})

	keep := ranked[0]
	decision := models.Decision{Relation: group.Relation, Keep: keep}

	taken := make(map[string]bool)
	for _, rec := range ranked[1:] {
		holding := HoldingDir(filepath.Dir(rec.Path))
		dest := NextFreeName(holding, filepath.Base(rec.Path), taken)
		taken[dest] = true

		why := models.LaterDate
		if rec.EffectiveDate().Equal(keep.EffectiveDate()) {
			why = models.LongerName
		}

		decision.Moves = append(decision.Moves, models.Move{
			Record: rec,
			Dest:   dest,
			Why:    why,
		})
	}

	return decision
}

// HoldingDir returns the holding directory for files displaced from
// parent: a child of parent named after it.
func HoldingDir(parent string) string {
	return filepath.Join(parent, filepath.Base(parent)+HoldingDirSuffix)
}

// NextFreeName returns a destination path inside dir for name,
// appending (1), (2), ... before the extension until neither the disk
// nor an already planned move (taken, may be nil) claims it. An
// existing file is never overwritten.
func NextFreeName(dir, name string, taken map[string]bool) string {
	dest := filepath.Join(dir, name)
	if !exists(dest) && !taken[dest] {
		return dest
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s(%d)%s", stem, counter, ext))
		if !exists(dest) && !taken[dest] {
			return dest
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
