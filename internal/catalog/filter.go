package catalog

import (
	"math/rand"
	"regexp"
	"sort"
	"time"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/models"
)

// FilterOptions control how a raw descriptor list is filtered, sorted and
// capped. Date bounds and the title pattern must already be resolved; the
// config package rejects malformed expressions at load time.
type FilterOptions struct {
	// MinDuration/MaxDuration bound the duration in seconds. Nil is
	// unconstrained on that side.
	MinDuration *int
	MaxDuration *int

	// DateAfter/DateBefore bound the publish timestamp. Zero values are
	// unconstrained.
	DateAfter  time.Time
	DateBefore time.Time

	// TitlePattern keeps only matching titles when non-nil.
	TitlePattern *regexp.Regexp

	// SortOrder orders the surviving descriptors.
	SortOrder config.SortOrder

	// MaxVideos truncates the sorted list. Zero means no cap.
	MaxVideos int

	// Rand supplies randomness for SortRandom. Nil falls back to the
	// package-level source.
	Rand *rand.Rand
}

// ChannelFilterOptions builds FilterOptions from a channel configuration.
// now anchors relative date expressions.
func ChannelFilterOptions(ch *config.ChannelConfig, now time.Time, rnd *rand.Rand) (FilterOptions, error) {
	opts := FilterOptions{
		MinDuration: ch.MinDuration,
		MaxDuration: ch.MaxDuration,
		SortOrder:   ch.SortOrder,
		MaxVideos:   ch.MaxVideosPerSource,
		Rand:        rnd,
	}

	if ch.TitlePattern != "" {
		re, err := config.CompileTitlePattern(ch.TitlePattern)
		if err != nil {
			return FilterOptions{}, err
		}
		opts.TitlePattern = re
	}
	if ch.DateAfter != "" {
		t, err := config.ResolveDateExpr(ch.DateAfter, now)
		if err != nil {
			return FilterOptions{}, err
		}
		opts.DateAfter = t
	}
	if ch.DateBefore != "" {
		t, err := config.ResolveDateExpr(ch.DateBefore, now)
		if err != nil {
			return FilterOptions{}, err
		}
		opts.DateBefore = t
	}

	return opts, nil
}

// PoolFilterOptions builds FilterOptions for a publicity pool. Pool entries
// are always drawn at random, so the list order is shuffled.
func PoolFilterOptions(pool *config.PublicityPool, rnd *rand.Rand) FilterOptions {
	return FilterOptions{
		MinDuration: pool.MinDuration,
		MaxDuration: pool.MaxDuration,
		SortOrder:   config.SortRandom,
		MaxVideos:   pool.MaxVideosPerSource,
		Rand:        rnd,
	}
}

// Filter applies duration, date-window and title filters, sorts per the
// configured order, and caps the result. The input slice is not mutated.
func Filter(videos []models.VideoDescriptor, opts FilterOptions) []models.VideoDescriptor {
	kept := make([]models.VideoDescriptor, 0, len(videos))
	for _, v := range videos {
		if opts.MinDuration != nil && v.Duration < *opts.MinDuration {
			continue
		}
		if opts.MaxDuration != nil && v.Duration > *opts.MaxDuration {
			continue
		}
		if !opts.DateAfter.IsZero() && v.PublishedAt.Before(opts.DateAfter) {
			continue
		}
		if !opts.DateBefore.IsZero() && v.PublishedAt.After(opts.DateBefore) {
			continue
		}
		if opts.TitlePattern != nil && !opts.TitlePattern.MatchString(v.Title) {
			continue
		}
		kept = append(kept, v)
	}

	switch opts.SortOrder {
	case config.SortOldest:
		sort.SliceStable(kept, func(i, j int) bool {
			if !kept[i].PublishedAt.Equal(kept[j].PublishedAt) {
				return kept[i].PublishedAt.Before(kept[j].PublishedAt)
			}
			return kept[i].ID < kept[j].ID
		})
	case config.SortRandom:
		shuffle(kept, opts.Rand)
	default: // newest
		sort.SliceStable(kept, func(i, j int) bool {
			if !kept[i].PublishedAt.Equal(kept[j].PublishedAt) {
				return kept[i].PublishedAt.After(kept[j].PublishedAt)
			}
			return kept[i].ID < kept[j].ID
		})
	}

	if opts.MaxVideos > 0 && len(kept) > opts.MaxVideos {
		kept = kept[:opts.MaxVideos]
	}
	return kept
}

func shuffle(videos []models.VideoDescriptor, rnd *rand.Rand) {
	swap := func(i, j int) { videos[i], videos[j] = videos[j], videos[i] }
	if rnd != nil {
		rnd.Shuffle(len(videos), swap)
		return
	}
	rand.Shuffle(len(videos), swap)
}
