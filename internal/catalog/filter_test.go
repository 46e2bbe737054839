package catalog

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/models"
)

func intPtr(n int) *int { return &n }

func video(id string, duration int, published time.Time) models.VideoDescriptor {
	return models.VideoDescriptor{
		ID:          id,
		Title:       "Video " + id,
		Duration:    duration,
		PublishedAt: published,
	}
}

func TestFilterDurationBounds(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	videos := []models.VideoDescriptor{
		video("short", 30, base),
		video("mid", 300, base.Add(time.Hour)),
		video("long", 700, base.Add(2 * time.Hour)),
	}

	got := Filter(videos, FilterOptions{MinDuration: intPtr(60), MaxDuration: intPtr(600)})

	require.Len(t, got, 1)
	assert.Equal(t, "mid", got[0].ID)
}

func TestFilterDateWindow(t *testing.T) {
	videos := []models.VideoDescriptor{
		video("old", 100, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
		video("in", 100, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		video("new", 100, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}

	got := Filter(videos, FilterOptions{
		DateAfter:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateBefore: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "in", got[0].ID)
}

func TestFilterTitlePattern(t *testing.T) {
	videos := []models.VideoDescriptor{
		{ID: "a", Title: "Weekly Recap #1", Duration: 100},
		{ID: "b", Title: "Breaking news", Duration: 100},
		{ID: "c", Title: "weekly recap #2", Duration: 100},
	}

	got := Filter(videos, FilterOptions{TitlePattern: regexp.MustCompile(`(?i)weekly recap`)})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestFilterSortOrders(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t2.Add(24 * time.Hour)
	videos := []models.VideoDescriptor{
		video("b", 100, t2),
		video("a", 100, t1),
		video("c", 100, t3),
	}

	newest := Filter(videos, FilterOptions{SortOrder: config.SortNewest})
	assert.Equal(t, []string{"c", "b", "a"}, ids(newest))

	oldest := Filter(videos, FilterOptions{SortOrder: config.SortOldest})
	assert.Equal(t, []string{"a", "b", "c"}, ids(oldest))

	// Random order is deterministic for a fixed seed and preserves the set.
	r1 := Filter(videos, FilterOptions{SortOrder: config.SortRandom, Rand: rand.New(rand.NewSource(7))})
	r2 := Filter(videos, FilterOptions{SortOrder: config.SortRandom, Rand: rand.New(rand.NewSource(7))})
	assert.Equal(t, ids(r1), ids(r2))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(r1))
}

func TestFilterTieBreaksOnID(t *testing.T) {
	same := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	videos := []models.VideoDescriptor{
		video("z", 100, same),
		video("a", 100, same),
	}

	got := Filter(videos, FilterOptions{SortOrder: config.SortNewest})
	assert.Equal(t, []string{"a", "z"}, ids(got))
}

func TestFilterCapAppliesAfterSort(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	videos := []models.VideoDescriptor{
		video("oldest", 100, t1),
		video("newest", 100, t1.Add(48*time.Hour)),
		video("middle", 100, t1.Add(24*time.Hour)),
	}

	got := Filter(videos, FilterOptions{SortOrder: config.SortNewest, MaxVideos: 2})

	assert.Equal(t, []string{"newest", "middle"}, ids(got))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	videos := []models.VideoDescriptor{
		video("b", 100, t1),
		video("a", 100, t1.Add(time.Hour)),
	}

	Filter(videos, FilterOptions{SortOrder: config.SortNewest})

	assert.Equal(t, "b", videos[0].ID)
	assert.Equal(t, "a", videos[1].ID)
}

func TestChannelFilterOptionsResolvesDates(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	ch := &config.ChannelConfig{
		ID:        "test",
		DateAfter: "3 months ago",
		SortOrder: config.SortNewest,
	}

	opts, err := ChannelFilterOptions(ch, now, nil)
	require.NoError(t, err)
	assert.True(t, opts.DateAfter.Equal(now.AddDate(0, -3, 0)))
	assert.True(t, opts.DateBefore.IsZero())
}

func TestChannelFilterOptionsBadPattern(t *testing.T) {
	ch := &config.ChannelConfig{ID: "test", TitlePattern: "[bad"}

	_, err := ChannelFilterOptions(ch, time.Now(), nil)
	assert.Error(t, err)
}

func ids(videos []models.VideoDescriptor) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.ID
	}
	return out
}
