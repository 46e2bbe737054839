// Package schedule builds and queries per-channel program schedules. A
// Schedule is an immutable snapshot: refreshes produce a new value that
// atomically replaces the old one, so in-flight readers are never disturbed.
package schedule

import (
	"errors"
	"sort"
	"time"

	"github.com/pseudotv/pseudotv/internal/models"
)

// Sentinel errors surfaced by schedule generation and resolution.
var (
	// ErrSourceExhausted reports that a channel or pool yielded zero usable
	// videos after filtering. It is channel-scoped and never aborts the
	// fleet.
	ErrSourceExhausted = errors.New("no eligible videos after filtering")

	// ErrScheduleExhausted reports a position lookup past the last entry,
	// meaning a refresh is overdue.
	ErrScheduleExhausted = errors.New("schedule exhausted")

	// ErrNoSchedule reports that a channel has no generated schedule yet.
	ErrNoSchedule = errors.New("no schedule generated")
)

// Entry is a single scheduled program. Immutable once created; entries are
// removed only by a subsequent roll or rebuild pass.
type Entry struct {
	Kind  models.EntryKind
	Video models.VideoDescriptor

	// Start and End are the absolute air window; End - Start equals the
	// video duration.
	Start time.Time
	End   time.Time
}

// Schedule is the ordered, time-contiguous program sequence for one channel.
// entries[i].End == entries[i+1].Start for all i.
type Schedule struct {
	ChannelID   string
	Entries     []Entry
	GeneratedAt time.Time
}

// Horizon returns the end timestamp of the last entry, or the zero time for
// an empty schedule.
func (s *Schedule) Horizon() time.Time {
	if len(s.Entries) == 0 {
		return time.Time{}
	}
	return s.Entries[len(s.Entries)-1].End
}

// Resolve locates the entry airing at now and the seek offset into it.
//
// The contiguity invariant makes a binary search over entry end times exact.
// An instant before the first entry clamps to the first entry at offset
// zero; an instant at or past the last entry's end returns
// ErrScheduleExhausted.
func (s *Schedule) Resolve(now time.Time) (Entry, time.Duration, error) {
	if len(s.Entries) == 0 {
		return Entry{}, 0, ErrScheduleExhausted
	}

	if now.Before(s.Entries[0].Start) {
		return s.Entries[0], 0, nil
	}

	idx := sort.Search(len(s.Entries), func(i int) bool {
		return s.Entries[i].End.After(now)
	})
	if idx == len(s.Entries) {
		return Entry{}, 0, ErrScheduleExhausted
	}

	entry := s.Entries[idx]
	return entry, now.Sub(entry.Start), nil
}

// futureTail returns the entries still airing or yet to air at now. The
// currently airing entry is kept so an active stream is never cut by a
// refresh.
func (s *Schedule) futureTail(now time.Time) []Entry {
	idx := sort.Search(len(s.Entries), func(i int) bool {
		return s.Entries[i].End.After(now)
	})
	return s.Entries[idx:]
}

// countSinceLastPublicity returns how many trailing regular entries follow
// the last publicity entry. A roll refresh seeds the interleaver with this
// so the cadence continues across the preserved tail.
func countSinceLastPublicity(entries []Entry) int {
	count := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == models.KindPublicity {
			break
		}
		count++
	}
	return count
}
