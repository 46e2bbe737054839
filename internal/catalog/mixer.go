package catalog

import (
	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/models"
)

// Mix combines the per-source filtered lists into one ordered sequence.
//
// Concatenate appends the lists in configured source order, preserving each
// list's internal order. Interleave round-robins across the lists in source
// order, skipping exhausted lists, until all are drained. Both are stable
// and reproducible for identical inputs.
func Mix(lists [][]models.VideoDescriptor, algorithm config.MixingAlgorithm) []models.VideoDescriptor {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	mixed := make([]models.VideoDescriptor, 0, total)

	if algorithm == config.MixInterleave {
		for round := 0; len(mixed) < total; round++ {
			for _, l := range lists {
				if round < len(l) {
					mixed = append(mixed, l[round])
				}
			}
		}
		return mixed
	}

	for _, l := range lists {
		mixed = append(mixed, l...)
	}
	return mixed
}
