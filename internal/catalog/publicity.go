package catalog

import (
	"math/rand"

	"github.com/pseudotv/pseudotv/internal/models"
)

// Program pairs a video with its schedule kind before timestamps are
// assigned.
type Program struct {
	Kind  models.EntryKind
	Video models.VideoDescriptor
}

// InterleavePublicity walks the mixed regular sequence and appends one
// randomly chosen pool entry after every nth regular item.
//
// startCount seeds the regular-item counter so a roll refresh continues the
// cadence from where the preserved schedule tail left off. The returned
// count is the number of regular items since the last publicity insertion,
// to be carried into the next extension pass.
//
// When n <= 0 or the pool is empty no publicity is inserted, but the counter
// still accumulates; nothing is silently substituted.
func InterleavePublicity(regular []models.VideoDescriptor, pool []models.VideoDescriptor, n, startCount int, rnd *rand.Rand) ([]Program, int) {
	out := make([]Program, 0, len(regular))
	count := startCount

	for _, v := range regular {
		out = append(out, Program{Kind: models.KindRegular, Video: v})
		count++
		if n > 0 && count%n == 0 {
			if len(pool) > 0 {
				out = append(out, Program{Kind: models.KindPublicity, Video: pick(pool, rnd)})
				count = 0
			}
		}
	}

	return out, count
}

func pick(pool []models.VideoDescriptor, rnd *rand.Rand) models.VideoDescriptor {
	if rnd != nil {
		return pool[rnd.Intn(len(pool))]
	}
	return pool[rand.Intn(len(pool))]
}
