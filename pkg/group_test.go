package pkg

import (
	"testing"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/kamaw/photodup/internal/models"
)

func record(path, digest string, hash *goimagehash.ImageHash) models.PhotoRecord {
	return models.PhotoRecord{
		Path:       path,
		Digest:     digest,
		Perceptual: hash,
		ModTime:    time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ahash(v uint64) *goimagehash.ImageHash {
	return goimagehash.NewImageHash(v, goimagehash.AHash)
}

func TestGroupExact(t *testing.T) {
	records := []models.PhotoRecord{
		record("/p/a.jpg", "d1", nil),
		record("/p/b.jpg", "d2", nil),
		record("/p/c.jpg", "d1", nil),
		record("/p/d.jpg", "d3", nil),
		record("/p/e.jpg", "d3", nil),
		record("/p/f.jpg", "d3", nil),
	}

	groups := Group(records, true, 0)

	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups but got %v instead", len(groups))
	}

	first, second := groups[0], groups[1]
	if first.Relation != models.Exact || second.Relation != models.Exact {
		t.Errorf("Expected exact relation on every group")
	}
	if len(first.Records) != 2 || first.Records[0].Path != "/p/a.jpg" || first.Records[1].Path != "/p/c.jpg" {
		t.Errorf("Expected group of a.jpg and c.jpg but got %v instead", first.Records)
	}
	if len(second.Records) != 3 {
		t.Errorf("Expected group of 3 but got %v instead", len(second.Records))
	}
}

func TestGroupSimilar(t *testing.T) {
	// 0xffffffffffffffff vs 0xfffffffffffffffc differ by 2 bits:
	// similarity 62/64 = 0.96875
	near := ahash(0xfffffffffffffffc)
	far := ahash(0)

	cases := []struct {
		name      string
		records   []models.PhotoRecord
		threshold float64
		expected  int
	}{
		{
			name: "two near images above threshold form one group",
			records: []models.PhotoRecord{
				record("/p/a.jpg", "d1", ahash(0xffffffffffffffff)),
				record("/p/b.jpg", "d2", near),
			},
			threshold: 0.95,
			expected:  1,
		},
		{
			name: "same images below a stricter threshold form no group",
			records: []models.PhotoRecord{
				record("/p/a.jpg", "d1", ahash(0xffffffffffffffff)),
				record("/p/b.jpg", "d2", near),
			},
			threshold: 0.99,
			expected:  0,
		},
		{
			name: "visually unrelated images form no group",
			records: []models.PhotoRecord{
				record("/p/a.jpg", "d1", ahash(0xffffffffffffffff)),
				record("/p/b.jpg", "d2", far),
			},
			threshold: 0.5,
			expected:  0,
		},
		{
			name: "missing fingerprints never match, even at threshold 0",
			records: []models.PhotoRecord{
				record("/p/a.jpg", "d1", nil),
				record("/p/b.jpg", "d2", nil),
			},
			threshold: 0,
			expected:  0,
		},
	}

	for _, c := range cases {
		groups := Group(c.records, false, c.threshold)
		if len(groups) != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, len(groups))
		}
		for _, g := range groups {
			if g.Relation != models.Similar {
				t.Errorf("%v\n\tExpected similar relation but got %v instead", c.name, g.Relation)
			}
		}
	}
}

func TestGroupSimilarExcludesExactDuplicates(t *testing.T) {
	same := ahash(0xffffffffffffffff)

	// a and b are byte-identical; c is visually identical to both but
	// has different bytes. The exact pair must not resurface as
	// similar, so only c ends up unclaimed and alone.
	records := []models.PhotoRecord{
		record("/p/a.jpg", "d1", same),
		record("/p/b.jpg", "d1", same),
		record("/p/c.jpg", "d2", same),
	}

	groups := Group(records, false, 0.9)

	if len(groups) != 0 {
		t.Errorf("Expected no similarity groups but got %v instead", len(groups))
	}
}

func TestGroupSimilarSeedOnlyChaining(t *testing.T) {
	// b is within 2 bits of seed a; c is within 2 bits of b but 4 bits
	// from a. Comparison is against the seed only, so c stays out when
	// the threshold admits 2-bit but not 4-bit distances.
	a := ahash(0xffffffffffffffff)
	b := ahash(0xfffffffffffffffc)
	c := ahash(0xfffffffffffffff0)

	records := []models.PhotoRecord{
		record("/p/a.jpg", "d1", a),
		record("/p/b.jpg", "d2", b),
		record("/p/c.jpg", "d3", c),
	}

	threshold := 1.0 - 2.5/64

	groups := Group(records, false, threshold)

	if len(groups) != 1 {
		t.Fatalf("Expected 1 group but got %v instead", len(groups))
	}
	if len(groups[0].Records) != 2 {
		t.Fatalf("Expected a group of 2 but got %v instead", len(groups[0].Records))
	}
	if groups[0].Records[1].Path != "/p/b.jpg" {
		t.Errorf("Expected b.jpg to join the seed's group but got %v instead", groups[0].Records[1].Path)
	}
}
