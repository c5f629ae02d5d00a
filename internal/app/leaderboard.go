package app

import (
	"time"

	"livetrivia/internal/domain"
)

// WindowedTotals sums points per user over the entries inside w, highest first.
// Entries must be ordered by SubmittedAt; ties keep the order in which users
// first appear inside the window.
func WindowedTotals(entries []domain.LedgerEntry, w domain.Window, now time.Time) []domain.LeaderboardEntry {
	since, bounded := windowStart(w, now)
	if !bounded {
		return domain.Tally(entries)
	}
	inside := make([]domain.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if !e.SubmittedAt.Before(since) {
			inside = append(inside, e)
		}
	}
	return domain.Tally(inside)
}

// RankOf returns 1 + the number of users with strictly more points than userID
// inside w. A user with no entries has zero points.
func RankOf(entries []domain.LedgerEntry, userID string, w domain.Window, now time.Time) domain.Rank {
	return RankIn(WindowedTotals(entries, w, now), userID, w)
}

// RankIn ranks userID against already aggregated totals for w.
func RankIn(totals []domain.LeaderboardEntry, userID string, w domain.Window) domain.Rank {
	mine := 0
	for _, row := range totals {
		if row.UserID == userID {
			mine = row.Points
			break
		}
	}
	ahead := 0
	for _, row := range totals {
		if row.UserID != userID && row.Points > mine {
			ahead++
		}
	}
	return domain.Rank{Window: w, Rank: ahead + 1, Points: mine}
}

func windowStart(w domain.Window, now time.Time) (time.Time, bool) {
	d := w.Duration()
	if d == 0 {
		return time.Time{}, false
	}
	return now.Add(-d), true
}
