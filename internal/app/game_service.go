package app

import (
	"context"
	"sort"
	"time"

	"livetrivia/internal/domain"
	"livetrivia/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GameService is the session boundary: every client interaction starts here.
type GameService struct {
	coordinator *Coordinator
	ledger      *Ledger
	store       LedgerStore
	questions   QuestionStore
	profiles    ProfileDirectory
	avatars     AvatarResolver
	scorer      Scorer
	messages    *MessageGenerator
	log         zerolog.Logger
	metrics     *metrics.Collectors
}

// GameOption configures optional collaborators of the GameService.
type GameOption func(*GameService)

func WithProfiles(dir ProfileDirectory) GameOption {
	return func(s *GameService) { s.profiles = dir }
}

func WithAvatars(resolver AvatarResolver) GameOption {
	return func(s *GameService) { s.avatars = resolver }
}

func WithScorer(scorer Scorer) GameOption {
	return func(s *GameService) { s.scorer = scorer }
}

func WithMessages(gen *MessageGenerator) GameOption {
	return func(s *GameService) { s.messages = gen }
}

func WithQuestions(store QuestionStore) GameOption {
	return func(s *GameService) { s.questions = store }
}

func WithServiceLogger(log zerolog.Logger) GameOption {
	return func(s *GameService) { s.log = log }
}

func WithServiceMetrics(m *metrics.Collectors) GameOption {
	return func(s *GameService) { s.metrics = m }
}

func NewGameService(coordinator *Coordinator, store LedgerStore, opts ...GameOption) *GameService {
	s := &GameService{
		coordinator: coordinator,
		ledger:      NewLedger(store, coordinator.Clock()),
		store:       store,
		scorer: Scorer{
			Max:    DefaultMaxPoints,
			Floor:  DefaultFloorPoints,
			Window: coordinator.QuestionDuration(),
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.messages == nil {
		s.messages = NewMessageGenerator(0)
	}
	if s.scorer.Window <= 0 {
		s.scorer.Window = coordinator.QuestionDuration()
	}
	return s
}

// Resolve advances the clock if due and returns the view for the caller's phase.
func (s *GameService) Resolve(ctx context.Context, player domain.Player) (domain.SessionView, error) {
	res, err := s.coordinator.Resolve(ctx)
	if err != nil {
		return domain.SessionView{}, err
	}
	lbs, err := s.leaderboards(ctx, s.coordinator.Clock().Now())
	if err != nil {
		return domain.SessionView{}, err
	}

	view := domain.SessionView{
		Phase:        res.Phase,
		RemainingMS:  res.Remaining.Milliseconds(),
		Changed:      res.Changed,
		Question:     res.Question,
		Category:     res.Category,
		Leaderboards: lbs,
	}
	if res.Phase == domain.PhaseIntermission && player.ID != "" {
		view.Message = s.messages.Generate(player.ID, res.StartedAt, func(w domain.Window) domain.Rank {
			return RankIn(lbs[w], player.ID, w)
		})
	}
	return view, nil
}

// SubmitAnswer records player's answer against the question currently open
// for answers. Points are derived from how long the window has been open
// unless the scorer trusts the client's claim.
func (s *GameService) SubmitAnswer(ctx context.Context, player domain.Player, answer string, claimed int) (domain.LedgerEntry, error) {
	if _, err := s.coordinator.Resolve(ctx); err != nil {
		return domain.LedgerEntry{}, err
	}
	state := s.coordinator.Snapshot()
	q := state.Answerable()

	elapsed := s.scorer.Window
	if state.Phase == domain.PhaseQuestion {
		elapsed = s.coordinator.Clock().Since(state.StartedAt)
	}
	points := s.scorer.Points(elapsed, claimed)

	entry, err := s.ledger.Record(ctx, player, q, answer, points)
	if err != nil {
		s.metrics.Answer("duplicate")
		return domain.LedgerEntry{}, err
	}
	if entry.Correct() {
		s.metrics.Answer("correct")
	} else {
		s.metrics.Answer("incorrect")
	}
	s.log.Debug().
		Str("user_id", player.ID).
		Str("question_id", entry.QuestionID).
		Int("points", entry.Points).
		Msg("answer recorded")
	return entry, nil
}

// Scoreboard lists the answers to the question currently open for answers,
// best first.
func (s *GameService) Scoreboard(ctx context.Context) ([]domain.ScoreboardEntry, error) {
	if _, err := s.coordinator.Resolve(ctx); err != nil {
		return nil, err
	}
	q := s.coordinator.Snapshot().Answerable()
	return s.scoreboardFor(ctx, q.ID)
}

// Waiting renders the view shown after answering. Once the intermission has
// started the caller is told to go back through Resolve.
func (s *GameService) Waiting(ctx context.Context, entryID uuid.UUID) (domain.WaitingView, error) {
	res, err := s.coordinator.Resolve(ctx)
	if err != nil {
		return domain.WaitingView{}, err
	}
	entry, err := s.ledger.Entry(ctx, entryID)
	if err != nil {
		return domain.WaitingView{}, err
	}
	if res.Phase == domain.PhaseIntermission {
		return domain.WaitingView{Redirect: true}, nil
	}
	board, err := s.scoreboardFor(ctx, entry.QuestionID)
	if err != nil {
		return domain.WaitingView{}, err
	}
	return domain.WaitingView{
		RemainingMS: res.Remaining.Milliseconds(),
		Answer:      entry.Answer,
		Correct:     entry.Correct(),
		Points:      entry.Points,
		Question:    res.Question,
		Scoreboard:  board,
	}, nil
}

// Leaderboards returns the ranked totals for every window.
func (s *GameService) Leaderboards(ctx context.Context) (domain.Leaderboards, error) {
	return s.leaderboards(ctx, s.coordinator.Clock().Now())
}

// WindowedTotals returns the ranked totals for a single window.
func (s *GameService) WindowedTotals(ctx context.Context, w domain.Window) ([]domain.LeaderboardEntry, error) {
	return s.store.Totals(ctx, sinceFor(w, s.coordinator.Clock().Now()))
}

// RankOf returns userID's standing inside w.
func (s *GameService) RankOf(ctx context.Context, userID string, w domain.Window) (domain.Rank, error) {
	totals, err := s.WindowedTotals(ctx, w)
	if err != nil {
		return domain.Rank{}, err
	}
	return RankIn(totals, userID, w), nil
}

// Message returns userID's message for the current phase. It matches the
// message Resolve shows during the same intermission.
func (s *GameService) Message(ctx context.Context, userID string) (string, error) {
	lbs, err := s.Leaderboards(ctx)
	if err != nil {
		return "", err
	}
	start := s.coordinator.Snapshot().StartedAt
	return s.messages.Generate(userID, start, func(w domain.Window) domain.Rank {
		return RankIn(lbs[w], userID, w)
	}), nil
}

// Question looks up a served question, falling back to the question store
// for anything older than the clock remembers.
func (s *GameService) Question(ctx context.Context, id string) (domain.Question, error) {
	state := s.coordinator.Snapshot()
	for _, q := range []*domain.Question{state.Current, state.Retired} {
		if q != nil && q.ID == id {
			return *q, nil
		}
	}
	if s.questions == nil {
		return domain.Question{}, domain.ErrNoQuestion
	}
	return s.questions.Question(ctx, id)
}

func (s *GameService) scoreboardFor(ctx context.Context, questionID string) ([]domain.ScoreboardEntry, error) {
	entries, err := s.store.ForQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})

	profiles := map[string]domain.Profile{}
	if s.profiles != nil && len(entries) > 0 {
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.UserID)
		}
		found, err := s.profiles.Profiles(ctx, ids)
		if err != nil {
			// Profiles are decoration; the scoreboard still renders without them.
			s.log.Warn().Err(err).Msg("profile lookup failed")
		} else {
			profiles = found
		}
	}

	board := make([]domain.ScoreboardEntry, 0, len(entries))
	for _, e := range entries {
		row := domain.ScoreboardEntry{Username: e.Username, Points: e.Points}
		if p, ok := profiles[e.UserID]; ok {
			if p.Username != "" {
				row.Username = p.Username
			}
			row.Quip = p.Quip
			row.AvatarURL = s.avatarURL(ctx, p.AvatarKey)
		}
		board = append(board, row)
	}
	return board, nil
}

func (s *GameService) avatarURL(ctx context.Context, key string) string {
	if s.avatars == nil || key == "" {
		return ""
	}
	url, err := s.avatars.AvatarURL(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("avatar_key", key).Msg("avatar url")
		return ""
	}
	return url
}

// leaderboards asks the store for one aggregate per window; no call reads
// the whole ledger.
func (s *GameService) leaderboards(ctx context.Context, now time.Time) (domain.Leaderboards, error) {
	lbs := make(domain.Leaderboards, len(domain.Windows))
	for _, w := range domain.Windows {
		totals, err := s.store.Totals(ctx, sinceFor(w, now))
		if err != nil {
			return nil, err
		}
		lbs[w] = totals
	}
	return lbs, nil
}

func sinceFor(w domain.Window, now time.Time) time.Time {
	since, bounded := windowStart(w, now)
	if !bounded {
		return time.Time{}
	}
	return since
}
