package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
)

// DateFormat is used whenever a record date appears in a log line or
// a rendered reason.
const DateFormat = "2006-01-02_15-04-05"

// maxDate sorts a record with no usable date after every real one.
var maxDate = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// PhotoRecord describes one candidate image file. Path is its identity
// within a run. Perceptual is nil when the image could not be decoded;
// CaptureTime is the zero time when no usable EXIF date was found and
// must be treated as unknown, never as the epoch.
//
// Index and Err only matter on the scan channel: Index is the walk
// order used to restore determinism after parallel fingerprinting, Err
// carries a fatal walk failure.
type PhotoRecord struct {
	Path        string
	Digest      string
	Perceptual  *goimagehash.ImageHash
	CaptureTime time.Time
	ModTime     time.Time
	Index       int
	Err         error `json:"-"`
}

// EffectiveDate is the date a record is ranked by: capture time when
// known, modification time otherwise.
func (r PhotoRecord) EffectiveDate() time.Time {
	if !r.CaptureTime.IsZero() {
		return r.CaptureTime
	}
	if !r.ModTime.IsZero() {
		return r.ModTime
	}
	// ModTime is mandatory for scanned records; a record missing both
	// can only be hand-built and sorts last.
	return maxDate
}

// DateKind names the timestamp EffectiveDate returns, for log lines.
func (r PhotoRecord) DateKind() string {
	if !r.CaptureTime.IsZero() {
		return "capture"
	}
	return "modified"
}

// Relation is the equivalence that put records into the same group.
type Relation int

const (
	Exact Relation = iota
	Similar
)

func (r Relation) String() string {
	if r == Exact {
		return "exact"
	}
	return "similar"
}

// DuplicateGroup is a set of two or more records considered duplicates
// of each other. Records keep their scan order.
type DuplicateGroup struct {
	Relation Relation
	Records  []PhotoRecord
}

// MoveReason states why a record lost against the kept one.
type MoveReason int

const (
	// LaterDate: the mover's effective date is later than the keeper's.
	LaterDate MoveReason = iota
	// LongerName: dates tie, the mover's filename stem is longer (or
	// equal, with the keeper's path sorting first).
	LongerName
)

// Move is one planned relocation within a Decision.
type Move struct {
	Record PhotoRecord
	Dest   string
	Why    MoveReason
}

// Decision resolves one duplicate group: the record kept in place and
// a planned move for every other member.
type Decision struct {
	Relation Relation
	Keep     PhotoRecord
	Moves    []Move
}

// ReasonFor renders a human-readable explanation for one planned move.
func (d Decision) ReasonFor(m Move) string {
	if d.Relation == Similar {
		return fmt.Sprintf("similarity above threshold, kept earlier file (%s date %s)",
			m.Record.DateKind(), m.Record.EffectiveDate().Format(DateFormat))
	}

	if m.Why == LongerName {
		return fmt.Sprintf("longer filename (%d chars >= %d chars)",
			StemLen(m.Record.Path), StemLen(d.Keep.Path))
	}

	return fmt.Sprintf("%s date later (%s) than kept file (%s)",
		m.Record.DateKind(),
		m.Record.EffectiveDate().Format(DateFormat),
		d.Keep.EffectiveDate().Format(DateFormat))
}

// StemLen is the length of a path's filename without its extension.
func StemLen(path string) int {
	base := filepath.Base(path)
	return len(strings.TrimSuffix(base, filepath.Ext(base)))
}
