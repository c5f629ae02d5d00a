package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"livetrivia/internal/domain"
	"livetrivia/internal/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultQuestionDuration     = 15 * time.Second
	DefaultIntermissionDuration = 10 * time.Second
	DefaultRetryBackoff         = time.Second
	DefaultFetchTimeout         = 5 * time.Second
)

// Coordinator owns the phase clock. Every caller goes through Resolve, which
// performs a due transition at most once per cycle and reports the phase the
// caller should render.
type Coordinator struct {
	provider  QuestionProvider
	store     ClockStore
	questions QuestionStore

	clock        clockwork.Clock
	question     time.Duration
	intermission time.Duration
	retryBackoff time.Duration
	fetchTimeout time.Duration
	log          zerolog.Logger
	metrics      *metrics.Collectors

	mu          sync.Mutex
	state       domain.ClockState
	version     uint64
	lastFailure time.Time

	// sf collapses concurrent question fetches for the same cycle.
	sf singleflight.Group

	persistMu sync.Mutex
	persisted uint64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

func WithClock(clock clockwork.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

func WithDurations(question, intermission time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if question > 0 {
			c.question = question
		}
		if intermission > 0 {
			c.intermission = intermission
		}
	}
}

// WithRetryBackoff sets how long a failed question fetch suppresses new attempts.
func WithRetryBackoff(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.retryBackoff = d }
}

func WithFetchTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

func WithMetrics(m *metrics.Collectors) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithQuestionStore records every installed question.
func WithQuestionStore(store QuestionStore) CoordinatorOption {
	return func(c *Coordinator) { c.questions = store }
}

func NewCoordinator(provider QuestionProvider, store ClockStore, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		provider:     provider,
		store:        store,
		clock:        clockwork.NewRealClock(),
		question:     DefaultQuestionDuration,
		intermission: DefaultIntermissionDuration,
		retryBackoff: DefaultRetryBackoff,
		fetchTimeout: DefaultFetchTimeout,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QuestionDuration is the length of the question window.
func (c *Coordinator) QuestionDuration() time.Duration { return c.question }

// Clock exposes the time source shared with the rest of the game.
func (c *Coordinator) Clock() clockwork.Clock { return c.clock }

// Start restores the persisted clock or, when there is none, installs a first
// question and opens its window. A provider outage is not fatal: Start logs
// it and Resolve installs the first question once the provider answers.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.store != nil {
		state, ok, err := c.store.LoadClock(ctx)
		if err != nil {
			return fmt.Errorf("load clock: %w", err)
		}
		if ok && state.Current != nil {
			c.mu.Lock()
			c.state = state
			c.version++
			c.mu.Unlock()
			c.log.Info().
				Str("phase", state.Phase.String()).
				Str("question_id", state.Current.ID).
				Time("started_at", state.StartedAt).
				Msg("phase clock restored")
			return nil
		}
	}

	if _, _, err := c.installFirst(ctx); err != nil {
		// Resolve keeps retrying; until then callers get ErrNoQuestion.
		c.log.Warn().Err(err).Msg("no first question yet; serving without one")
	}
	return nil
}

// installFirst opens the first question window. Concurrent callers share one
// fetch, and a failed fetch suppresses new attempts for the retry backoff.
func (c *Coordinator) installFirst(ctx context.Context) (domain.ClockState, bool, error) {
	ran := false
	v, err, _ := c.sf.Do("first", func() (interface{}, error) {
		ran = true
		c.mu.Lock()
		if c.state.Current != nil {
			state := c.state
			c.mu.Unlock()
			return transition{state: state}, nil
		}
		if !c.lastFailure.IsZero() && c.clock.Since(c.lastFailure) < c.retryBackoff {
			c.mu.Unlock()
			return transition{}, domain.ErrNoQuestion
		}
		c.mu.Unlock()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		start := c.clock.Now()
		q, err := c.provider.FetchQuestion(fetchCtx)
		cancel()
		c.metrics.ObserveFetch(c.clock.Since(start))

		c.mu.Lock()
		if err != nil {
			c.lastFailure = c.clock.Now()
			c.mu.Unlock()
			c.metrics.FetchFailed()
			return transition{}, fmt.Errorf("%w: %w", domain.ErrNoQuestion, err)
		}
		if c.state.Current != nil {
			state := c.state
			c.mu.Unlock()
			return transition{state: state}, nil
		}
		c.lastFailure = time.Time{}
		c.state = domain.ClockState{Phase: domain.PhaseQuestion, StartedAt: c.clock.Now(), Current: &q}
		c.version++
		state, version := c.state, c.version
		c.mu.Unlock()

		c.metrics.Transition(domain.PhaseQuestion.String())
		c.saveQuestion(ctx, q)
		c.persist(ctx, state, version)
		c.log.Info().Str("question_id", q.ID).Msg("phase clock started")
		return transition{state: state, changed: true}, nil
	})
	if err != nil {
		return domain.ClockState{}, false, err
	}
	t := v.(transition)
	return t.state, ran && t.changed, nil
}

// Snapshot returns a consistent copy of the clock state.
func (c *Coordinator) Snapshot() domain.ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resolve reads the clock, performs the transition if the current phase has
// expired, and returns the phase the caller should serve.
func (c *Coordinator) Resolve(ctx context.Context) (domain.Resolution, error) {
	c.metrics.Resolved()
	now := c.clock.Now()

	c.mu.Lock()
	state := c.state
	if state.Current == nil {
		c.mu.Unlock()
		first, changed, err := c.installFirst(ctx)
		if err != nil {
			return domain.Resolution{}, err
		}
		return c.resolution(first, c.clock.Now(), changed), nil
	}
	elapsed := now.Sub(state.StartedAt)

	switch state.Phase {
	case domain.PhaseQuestion:
		if elapsed > c.question {
			c.mu.Unlock()
			return c.closeQuestion(ctx, state), nil
		}
	case domain.PhaseIntermission:
		if elapsed > c.intermission {
			state = domain.ClockState{
				Phase:     domain.PhaseQuestion,
				StartedAt: now,
				Current:   state.Current,
				Retired:   state.Retired,
			}
			c.state = state
			c.version++
			version := c.version
			c.mu.Unlock()

			c.metrics.Transition(domain.PhaseQuestion.String())
			c.log.Info().Str("question_id", state.Current.ID).Dur("elapsed", elapsed).Msg("question window opened")
			c.persist(ctx, state, version)
			return c.resolution(state, c.clock.Now(), true), nil
		}
	}
	c.mu.Unlock()
	return c.resolution(state, now, false), nil
}

type transition struct {
	state   domain.ClockState
	changed bool
}

// closeQuestion moves Question -> Intermission. The provider is called
// outside the clock lock; singleflight plus the cycle re-checks guarantee a
// single fetch per question window.
func (c *Coordinator) closeQuestion(ctx context.Context, seen domain.ClockState) domain.Resolution {
	ran := false
	key := seen.StartedAt.Format(time.RFC3339Nano)
	v, _, _ := c.sf.Do(key, func() (interface{}, error) {
		ran = true
		return c.fetchAndInstall(ctx, seen), nil
	})
	t := v.(transition)
	return c.resolution(t.state, c.clock.Now(), ran && t.changed)
}

func (c *Coordinator) fetchAndInstall(ctx context.Context, seen domain.ClockState) transition {
	c.mu.Lock()
	if !c.sameCycleLocked(seen) {
		state := c.state
		c.mu.Unlock()
		return transition{state: state}
	}
	if !c.lastFailure.IsZero() && c.clock.Since(c.lastFailure) < c.retryBackoff {
		state := c.state
		c.mu.Unlock()
		return transition{state: state}
	}
	c.mu.Unlock()

	// The fetch belongs to the cycle, not to the request that happened to trigger it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	start := c.clock.Now()
	q, err := c.provider.FetchQuestion(fetchCtx)
	cancel()
	c.metrics.ObserveFetch(c.clock.Since(start))

	c.mu.Lock()
	if err != nil {
		c.lastFailure = c.clock.Now()
		state := c.state
		c.mu.Unlock()
		c.metrics.FetchFailed()
		c.log.Warn().Err(err).Str("question_id", seen.Current.ID).Msg("question fetch failed; transition deferred")
		return transition{state: state}
	}
	if !c.sameCycleLocked(seen) {
		state := c.state
		c.mu.Unlock()
		c.log.Error().Str("question_id", q.ID).Msg("discarding question fetched for a closed cycle")
		return transition{state: state}
	}
	c.lastFailure = time.Time{}
	state := domain.ClockState{
		Phase:     domain.PhaseIntermission,
		StartedAt: c.clock.Now(),
		Current:   &q,
		Retired:   seen.Current,
	}
	c.state = state
	c.version++
	version := c.version
	c.mu.Unlock()

	c.metrics.Transition(domain.PhaseIntermission.String())
	c.log.Info().
		Str("retired_question_id", seen.Current.ID).
		Str("question_id", q.ID).
		Str("category", q.Category).
		Msg("question window closed")
	c.saveQuestion(ctx, q)
	c.persist(ctx, state, version)
	return transition{state: state, changed: true}
}

func (c *Coordinator) sameCycleLocked(seen domain.ClockState) bool {
	return c.state.Phase == seen.Phase && c.state.StartedAt.Equal(seen.StartedAt)
}

func (c *Coordinator) resolution(state domain.ClockState, now time.Time, changed bool) domain.Resolution {
	elapsed := now.Sub(state.StartedAt)
	res := domain.Resolution{Phase: state.Phase, StartedAt: state.StartedAt, Changed: changed}
	switch state.Phase {
	case domain.PhaseQuestion:
		res.Remaining = nonNegative(c.question - elapsed)
		view := state.Current.View(c.eliminated(state.Current, elapsed))
		res.Question = &view
	case domain.PhaseIntermission:
		res.Remaining = nonNegative(c.intermission - elapsed)
		res.Category = state.Current.Category
	}
	return res
}

// eliminated counts the wrong choices hidden after elapsed. Reveals are spaced
// evenly so the last one lands before the window closes.
func (c *Coordinator) eliminated(q *domain.Question, elapsed time.Duration) int {
	n := len(q.EliminationOrder)
	if n == 0 || elapsed <= 0 {
		return 0
	}
	step := c.question / time.Duration(n+1)
	if step <= 0 {
		return n
	}
	count := int(elapsed / step)
	if count > n {
		count = n
	}
	return count
}

// persist writes state through to the store. Writes are ordered by version so
// a slow older write never overwrites a newer one.
func (c *Coordinator) persist(ctx context.Context, state domain.ClockState, version uint64) {
	if c.store == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if version <= c.persisted {
		return
	}
	if err := c.store.SaveClock(context.WithoutCancel(ctx), state); err != nil {
		c.metrics.PersistFailed()
		c.log.Error().Err(err).Str("phase", state.Phase.String()).Msg("persist phase clock")
		return
	}
	c.persisted = version
}

func (c *Coordinator) saveQuestion(ctx context.Context, q domain.Question) {
	if c.questions == nil {
		return
	}
	if err := c.questions.SaveQuestion(context.WithoutCancel(ctx), q); err != nil {
		c.log.Error().Err(err).Str("question_id", q.ID).Msg("save question")
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
