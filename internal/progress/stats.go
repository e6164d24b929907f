package progress

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/conorfennell/studyplan/internal/domain"
)

// Stats summarises how much of the schedule is done.
type Stats struct {
	TotalScheduled     int `json:"total_scheduled"`
	TotalCompleted     int `json:"total_completed"`
	PendingCount       int `json:"pending_count"`
	ProgressPercentage int `json:"progress_percentage"`
}

// Completion computes Stats. Completed items still count as scheduled.
func Completion(items []*domain.ReviewItem) Stats {
	st := Stats{TotalScheduled: len(items)}
	for _, it := range items {
		if it.Completed {
			st.TotalCompleted++
		}
	}
	st.PendingCount = st.TotalScheduled - st.TotalCompleted
	if st.TotalScheduled > 0 {
		st.ProgressPercentage = int(math.Round(100 * float64(st.TotalCompleted) / float64(st.TotalScheduled)))
	}
	return st
}

// Overdue counts non-completed items due at or before asOf.
func Overdue(items []*domain.ReviewItem, asOf time.Time) int {
	n := 0
	for _, it := range items {
		if it.IsDue(asOf) {
			n++
		}
	}
	return n
}

// Granularity is the calendar period of a bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Day, Week, Month:
		return g, nil
	}
	return "", &domain.ValidationError{Field: "granularity", Reason: fmt.Sprintf("unknown granularity %q", s)}
}

// Bucket is the completion rate of one calendar period.
type Bucket struct {
	Start          time.Time `json:"start"`
	Scheduled      int       `json:"scheduled"`
	Completed      int       `json:"completed"`
	CompletionRate float64   `json:"completion_rate"`
}

// Buckets places each item in the period of its last review, or of its next
// review when it was never reviewed. Empty periods are not returned.
func Buckets(items []*domain.ReviewItem, g Granularity, loc *time.Location) []Bucket {
	if loc == nil {
		loc = time.UTC
	}

	byStart := make(map[int64]*Bucket)
	for _, it := range items {
		at := it.NextReviewAt
		if it.LastReviewedAt != nil {
			at = *it.LastReviewedAt
		}
		start := periodStart(at.In(loc), g)

		b, ok := byStart[start.Unix()]
		if !ok {
			b = &Bucket{Start: start}
			byStart[start.Unix()] = b
		}
		b.Scheduled++
		if it.Completed {
			b.Completed++
		}
	}

	out := make([]Bucket, 0, len(byStart))
	for _, b := range byStart {
		if b.Scheduled == 0 {
			continue
		}
		rate := float64(b.Completed) / float64(b.Scheduled) * 100
		b.CompletionRate = min(100, max(0, rate))
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b Bucket) int { return a.Start.Compare(b.Start) })
	return out
}

func periodStart(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	switch g {
	case Week:
		offset := (int(t.Weekday()) + 6) % 7 // Monday is 0
		return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// Score is one leaderboard entry.
type Score struct {
	OwnerID string  `json:"owner_id"`
	Score   float64 `json:"score"`
}

// Rank is an owner's position on a leaderboard.
type Rank struct {
	Rank       int `json:"rank"`
	Total      int `json:"total"`
	UsersBelow int `json:"users_below"`
	Percentile int `json:"percentile"`
}

// PercentileRank finds ownerID in scores, which must be sorted best first.
// It returns nil when the owner is not on the list.
func PercentileRank(ownerID string, scores []Score) *Rank {
	idx := slices.IndexFunc(scores, func(s Score) bool { return s.OwnerID == ownerID })
	if idx < 0 {
		return nil
	}
	total := len(scores)
	rank := idx + 1
	return &Rank{
		Rank:       rank,
		Total:      total,
		UsersBelow: total - rank,
		Percentile: int(math.Round(100 * float64(total-rank) / float64(total))),
	}
}

// SortScores orders a leaderboard best first, ties by owner id.
func SortScores(scores []Score) {
	slices.SortStableFunc(scores, func(a, b Score) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.OwnerID < b.OwnerID:
			return -1
		case a.OwnerID > b.OwnerID:
			return 1
		}
		return 0
	})
}
