package cache

import (
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/corona10/goimagehash"

	"github.com/kamaw/photodup/internal/models"
)

var bucketName = []byte("Fingerprints")

// Entry is the persisted fingerprint set for one file, keyed by path.
// Size and ModTime identify the file state the fingerprints were
// computed from; any mismatch invalidates the entry. Only computed
// fingerprints are cached, never whole records.
type Entry struct {
	Size        int64
	ModTime     time.Time
	Digest      string
	Perceptual  *uint64
	CaptureTime time.Time
}

// Hash rebuilds the perceptual hash stored in the entry, or nil if the
// image was undecodable when the entry was written.
func (e Entry) Hash() *goimagehash.ImageHash {
	if e.Perceptual == nil {
		return nil
	}

	return goimagehash.NewImageHash(*e.Perceptual, goimagehash.AHash)
}

// Cache memoizes fingerprint computation across runs in a bolt file.
type Cache struct {
	db *bolt.DB
}

func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached fingerprints for path, if they were computed
// from the same size and modification time.
func (c *Cache) Get(path string, size int64, modTime time.Time) (Entry, bool) {
	var entry Entry
	var found bool

	_ = c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(path))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil
		}

		found = entry.Size == size && entry.ModTime.Equal(modTime)
		return nil
	})

	return entry, found
}

// Put stores the fingerprints of a freshly scanned record.
func (c *Cache) Put(path string, size int64, modTime time.Time, rec models.PhotoRecord) error {
	entry := Entry{
		Size:        size,
		ModTime:     modTime,
		Digest:      rec.Digest,
		CaptureTime: rec.CaptureTime,
	}
	if rec.Perceptual != nil {
		v := rec.Perceptual.GetHash()
		entry.Perceptual = &v
	}

	raw, err := json.Marshal(&entry)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(path), raw)
	})
}
