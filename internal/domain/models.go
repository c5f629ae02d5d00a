package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Phase is the top-level mode of the game.
type Phase int

const (
	PhaseQuestion Phase = iota
	PhaseIntermission
)

func (p Phase) String() string {
	switch p {
	case PhaseQuestion:
		return "question"
	case PhaseIntermission:
		return "intermission"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(raw string) (Phase, error) {
	switch raw {
	case "question":
		return PhaseQuestion, nil
	case "intermission":
		return PhaseIntermission, nil
	}
	return 0, fmt.Errorf("unknown phase %q", raw)
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePhase(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Question is one trivia question. It is immutable once built.
type Question struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	Category         string    `json:"category"`
	Difficulty       string    `json:"difficulty"`
	CorrectChoice    string    `json:"correctChoice"`
	Choices          []string  `json:"choices"`
	EliminationOrder []string  `json:"eliminationOrder"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// View strips the correct choice so the question can be shown to players.
// eliminated is the prefix of the elimination order already hidden.
func (q *Question) View(eliminated int) QuestionView {
	if eliminated < 0 {
		eliminated = 0
	}
	if eliminated > len(q.EliminationOrder) {
		eliminated = len(q.EliminationOrder)
	}
	return QuestionView{
		ID:               q.ID,
		Text:             q.Text,
		Category:         q.Category,
		Difficulty:       q.Difficulty,
		Choices:          append([]string(nil), q.Choices...),
		EliminationOrder: append([]string(nil), q.EliminationOrder...),
		Eliminated:       append([]string{}, q.EliminationOrder[:eliminated]...),
	}
}

// QuestionView is the player-facing projection of a Question.
type QuestionView struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Choices          []string `json:"choices"`
	EliminationOrder []string `json:"eliminationOrder"`
	Eliminated       []string `json:"eliminated"`
}

// ClockState is the single authoritative record of the game phase.
// Current is the question shown in, or staged for, the next question window.
// Retired is the question whose window closed most recently.
type ClockState struct {
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"startedAt"`
	Current   *Question `json:"current,omitempty"`
	Retired   *Question `json:"retired,omitempty"`
}

// Answerable returns the question a submission made right now is scored against.
func (s ClockState) Answerable() *Question {
	if s.Phase == PhaseIntermission && s.Retired != nil {
		return s.Retired
	}
	return s.Current
}

// Resolution is what the coordinator tells a caller about the current phase.
type Resolution struct {
	Phase     Phase         `json:"phase"`
	StartedAt time.Time     `json:"-"`
	Remaining time.Duration `json:"-"`
	// Changed is set when this call performed the transition.
	Changed  bool          `json:"changed"`
	Question *QuestionView `json:"question,omitempty"`
	Category string        `json:"category,omitempty"`
}

// Player identifies the authenticated user behind a request.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LedgerEntry records one answer submission. Entries are never mutated.
type LedgerEntry struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	QuestionID  string    `json:"questionId"`
	Answer      string    `json:"answer"`
	Points      int       `json:"points"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Correct reports whether the entry earned points.
func (e LedgerEntry) Correct() bool {
	return e.Points > 0
}

// Window is a trailing time range used to scope leaderboards.
type Window int

const (
	WindowHour Window = iota
	WindowDay
	WindowWeek
	WindowMonth
	WindowAll
)

// Windows lists every leaderboard window, shortest first.
var Windows = []Window{WindowHour, WindowDay, WindowWeek, WindowMonth, WindowAll}

// Duration returns the window length; zero means unbounded.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	case WindowMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

func (w Window) String() string {
	switch w {
	case WindowHour:
		return "hour"
	case WindowDay:
		return "day"
	case WindowWeek:
		return "week"
	case WindowMonth:
		return "month"
	case WindowAll:
		return "alltime"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// ParseWindow accepts the names produced by Window.String.
func ParseWindow(raw string) (Window, error) {
	for _, w := range Windows {
		if w.String() == raw {
			return w, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWindow, raw)
}

func (w Window) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Window) UnmarshalText(text []byte) error {
	parsed, err := ParseWindow(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// LeaderboardEntry is one row of a windowed leaderboard.
type LeaderboardEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// Tally sums points per user, highest first. entries must be ordered by
// SubmittedAt; ties keep the order in which users first appear and each row
// carries the username of the user's first entry.
func Tally(entries []LedgerEntry) []LeaderboardEntry {
	index := make(map[string]int)
	totals := make([]LeaderboardEntry, 0)
	for _, e := range entries {
		i, ok := index[e.UserID]
		if !ok {
			i = len(totals)
			index[e.UserID] = i
			totals = append(totals, LeaderboardEntry{UserID: e.UserID, Username: e.Username})
		}
		totals[i].Points += e.Points
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Points > totals[j].Points
	})
	return totals
}

// Leaderboards holds the ranked totals for every window.
type Leaderboards map[Window][]LeaderboardEntry

// Rank is a user's standing within a window.
type Rank struct {
	Window Window `json:"window"`
	Rank   int    `json:"rank"`
	Points int    `json:"points"`
}

// Profile is the externally managed player profile.
type Profile struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarKey string `json:"avatarKey"`
	Quip      string `json:"quip"`
}

// ScoreboardEntry is one row of the per-question scoreboard.
type ScoreboardEntry struct {
	Username  string `json:"user"`
	Points    int    `json:"points"`
	AvatarURL string `json:"url"`
	Quip      string `json:"quip"`
}

// SessionView is everything a polling client needs to render its current phase.
type SessionView struct {
	Phase        Phase         `json:"phase"`
	RemainingMS  int64         `json:"remainingMs"`
	Changed      bool          `json:"changed"`
	Question     *QuestionView `json:"question,omitempty"`
	Category     string        `json:"category,omitempty"`
	Message      string        `json:"message,omitempty"`
	Leaderboards Leaderboards  `json:"leaderboards"`
}

// WaitingView is shown after a user has answered and before the intermission starts.
type WaitingView struct {
	Redirect    bool              `json:"redirect"`
	RemainingMS int64             `json:"remainingMs"`
	Answer      string            `json:"answer"`
	Correct     bool              `json:"correct"`
	Points      int               `json:"points"`
	Question    *QuestionView     `json:"question,omitempty"`
	Scoreboard  []ScoreboardEntry `json:"scoreboard"`
}
