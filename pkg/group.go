package pkg

import (
	"github.com/kamaw/photodup/internal/fingerprint"
	"github.com/kamaw/photodup/internal/models"
)

// Group partitions records into duplicate groups. In exact mode every
// digest partition of two or more files becomes a group. In similarity
// mode, files covered by a digest partition of two or more are
// excluded first (exact duplicates are never also reported as
// similar); the remaining records are then clustered greedily in scan
// order: each unclaimed record seeds a group and claims every later
// unclaimed record whose similarity to the seed meets the threshold.
// A record with no perceptual hash never joins a similarity group.
func Group(records []models.PhotoRecord, exactOnly bool, threshold float64) []models.DuplicateGroup {
	if exactOnly {
		return groupExact(records)
	}

	return groupSimilar(records, threshold)
}

func groupExact(records []models.PhotoRecord) []models.DuplicateGroup {
	byDigest := make(map[string][]models.PhotoRecord)
	var order []string
	for _, r := range records {
		if _, ok := byDigest[r.Digest]; !ok {
			order = append(order, r.Digest)
		}
		byDigest[r.Digest] = append(byDigest[r.Digest], r)
	}

	var groups []models.DuplicateGroup
	for _, digest := range order {
		members := byDigest[digest]
		if len(members) < 2 {
			continue
		}

		groups = append(groups, models.DuplicateGroup{
			Relation: models.Exact,
			Records:  members,
		})
	}

	return groups
}

func groupSimilar(records []models.PhotoRecord, threshold float64) []models.DuplicateGroup {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Digest]++
	}

	var pool []models.PhotoRecord
	for _, r := range records {
		if counts[r.Digest] < 2 {
			pool = append(pool, r)
		}
	}

	claimed := make([]bool, len(pool))
	var groups []models.DuplicateGroup
	for i, seed := range pool {
		if claimed[i] {
			continue
		}
		claimed[i] = true

		members := []models.PhotoRecord{seed}
		if seed.Perceptual != nil {
			for j := i + 1; j < len(pool); j++ {
				if claimed[j] || pool[j].Perceptual == nil {
					continue
				}
				if fingerprint.Similarity(seed.Perceptual, pool[j].Perceptual) >= threshold {
					members = append(members, pool[j])
					claimed[j] = true
				}
			}
		}

		if len(members) > 1 {
			groups = append(groups, models.DuplicateGroup{
				Relation: models.Similar,
				Records:  members,
			})
		}
	}

	return groups
}
