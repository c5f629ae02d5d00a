package app_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"livetrivia/internal/app"
	"livetrivia/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestOrdinal(t *testing.T) {
	cases := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 10: "10th",
		11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd",
		23: "23rd", 101: "101st", 111: "111th", 112: "112th",
	}
	for n, want := range cases {
		require.Equal(t, want, app.Ordinal(n))
	}
}

func TestRankMessage(t *testing.T) {
	cases := []struct {
		rank domain.Rank
		want string
	}{
		{domain.Rank{Window: domain.WindowHour, Rank: 1, Points: 800}, "You are currently the player of the hour with 800 points!"},
		{domain.Rank{Window: domain.WindowDay, Rank: 1, Points: 1200}, "You are currently the player of the past day with 1200 points!"},
		{domain.Rank{Window: domain.WindowAll, Rank: 1, Points: 9000}, "You are currently the greatest of all time with 9000 points!"},
		{domain.Rank{Window: domain.WindowWeek, Rank: 2, Points: 500}, "You are the 2nd ranked player in the past week with 500 points!"},
		{domain.Rank{Window: domain.WindowAll, Rank: 3, Points: 400}, "You are the 3rd ranked player of all time with 400 points!"},
		{domain.Rank{Window: domain.WindowMonth, Rank: 22, Points: 0}, "You are the 22nd ranked player in the past month with 0 points."},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, app.RankMessage(tc.rank))
	}
}

func TestGenerateDrawsEveryFamily(t *testing.T) {
	gen := app.NewMessageGenerator(9)
	start := time.Date(2024, 5, 1, 12, 0, 15, 0, time.UTC)
	var rankCalls int
	rank := func(w domain.Window) domain.Rank {
		rankCalls++
		return domain.Rank{Window: w, Rank: 4, Points: 10}
	}

	tips, facts, ranks := 0, 0, 0
	const n = 3000
	for i := 0; i < n; i++ {
		msg := gen.Generate(fmt.Sprintf("user-%d", i), start.Add(time.Duration(i)*25*time.Second), rank)
		require.NotEmpty(t, msg)
		switch {
		case strings.HasPrefix(msg, "You are the 4th ranked player"):
			ranks++
		case isTip(msg):
			tips++
		default:
			facts++
		}
	}
	require.Equal(t, ranks, rankCalls, "rank is only consulted for rank messages")
	for _, count := range []int{ranks, tips, facts} {
		require.InDelta(t, n/3, count, n/3*0.15)
	}
}

func TestGenerateIsStablePerUserAndPhase(t *testing.T) {
	gen := app.NewMessageGenerator(0)
	start := time.Date(2024, 5, 1, 12, 0, 15, 0, time.UTC)
	rank := func(w domain.Window) domain.Rank {
		return domain.Rank{Window: w, Rank: 2, Points: 700}
	}

	first := gen.Generate("alice", start, rank)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, gen.Generate("alice", start, rank))
	}
	require.Equal(t, first, app.NewMessageGenerator(0).Generate("alice", start, rank), "instances with the same salt agree")

	// Across many intermissions the draw still moves around.
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[gen.Generate("alice", start.Add(time.Duration(i)*25*time.Second), rank)] = true
	}
	require.Greater(t, len(seen), 3)
}

func TestTipAndFactTextsAreDefined(t *testing.T) {
	for tip := app.TipLeaderboard; tip <= app.TipInvite; tip++ {
		require.NotEmpty(t, tip.Text())
	}
	for fact := app.FactHeadbanging; fact <= app.FactKangaroo; fact++ {
		require.NotEmpty(t, fact.Text())
	}
	require.Empty(t, app.Tip(-1).Text())
}

func isTip(msg string) bool {
	for tip := app.TipLeaderboard; tip <= app.TipInvite; tip++ {
		if tip.Text() == msg {
			return true
		}
	}
	return false
}
