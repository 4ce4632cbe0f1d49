package fingerprint

import (
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"lukechampine.com/blake3"

	"github.com/kamaw/photodup/internal/cache"
	"github.com/kamaw/photodup/internal/metrics"
	"github.com/kamaw/photodup/internal/models"
)

// HashBits is the length of a perceptual fingerprint. The average hash
// the library computes is always 64 bits.
const HashBits = 64

const exifTimeLayout = "2006:01:02 15:04:05"

// Fingerprinter computes the per-file identities used for grouping:
// an exact content digest, a perceptual hash and a capture timestamp.
type Fingerprinter struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	cache   *cache.Cache // nil disables caching
}

func New(logger *zap.Logger, mx *metrics.Metrics, c *cache.Cache) *Fingerprinter {
	return &Fingerprinter{
		logger:  logger,
		metrics: mx,
		cache:   c,
	}
}

// Record builds a PhotoRecord for path. A digest failure makes the
// record unusable and is returned as an error; an undecodable image or
// missing EXIF data only leave the corresponding field unset.
func (fp *Fingerprinter) Record(path string, info os.FileInfo) (models.PhotoRecord, error) {
	rec := models.PhotoRecord{Path: path, ModTime: info.ModTime()}

	if fp.cache != nil {
		if entry, ok := fp.cache.Get(path, info.Size(), info.ModTime()); ok {
			_ = fp.metrics.Increment("cache.hit")
			rec.Digest = entry.Digest
			rec.Perceptual = entry.Hash()
			rec.CaptureTime = entry.CaptureTime
			return rec, nil
		}
	}

	digest, err := fp.Digest(path)
	if err != nil {
		return models.PhotoRecord{}, err
	}
	rec.Digest = digest

	hash, err := fp.PerceptualHash(path)
	if err != nil {
		fp.logger.Warn("cannot compute perceptual hash",
			zap.String("path", path), zap.Error(err))
	} else {
		rec.Perceptual = hash
	}

	rec.CaptureTime = fp.CaptureTime(path)

	if fp.cache != nil {
		if err := fp.cache.Put(path, info.Size(), info.ModTime(), rec); err != nil {
			fp.logger.Warn("cannot cache fingerprints",
				zap.String("path", path), zap.Error(err))
		}
	}

	return rec, nil
}

// Digest streams the file through BLAKE3 and returns the hex sum.
// Identical bytes produce identical digests regardless of filename or
// timestamps.
func (fp *Fingerprinter) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := f.Close(); err != nil {
			fp.logger.Warn("cannot close file", zap.String("path", path), zap.Error(err))
		}
	}()

	stop := fp.metrics.Record("digest")
	defer func() { _ = stop() }()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// PerceptualHash decodes the image and computes its 64-bit average
// hash. The hash is taken over a grayscaled, downsampled rendition, so
// re-encoded copies of the same picture land close in Hamming space.
func (fp *Fingerprinter) PerceptualHash(path string) (*goimagehash.ImageHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			fp.logger.Warn("cannot close file", zap.String("path", path), zap.Error(err))
		}
	}()

	stop := fp.metrics.Record("perceptual_hash")
	defer func() { _ = stop() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	return goimagehash.AverageHash(img)
}

// CaptureTime reads the EXIF capture date, preferring DateTimeOriginal,
// then DateTimeDigitized, then DateTime. Returns the zero time when no
// tag is present or parsable; it never fails the file.
func (fp *Fingerprinter) CaptureTime(path string) time.Time {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}
	}
	defer func() { _ = f.Close() }()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}
	}

	tags := []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime}
	for _, name := range tags {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, err := time.ParseInLocation(exifTimeLayout, s, time.Local); err == nil {
			return t
		}
	}

	return time.Time{}
}

// Similarity is the normalized Hamming similarity between two
// perceptual hashes: 1 - mismatches/bits. Either operand being nil, or
// the operands not being comparable, yields 0.
func Similarity(a, b *goimagehash.ImageHash) float64 {
	if a == nil || b == nil {
		return 0
	}

	dist, err := a.Distance(b)
	if err != nil {
		return 0
	}

	return 1 - float64(dist)/HashBits
}
