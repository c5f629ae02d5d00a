package trivia

import (
	"context"
	"fmt"
	"html"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"livetrivia/internal/domain"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Category is an Open Trivia DB category.
type Category struct {
	ID   int
	Name string
}

// Categories is the fixed set questions are drawn from.
var Categories = []Category{
	{ID: 21, Name: "Sports"},
	{ID: 9, Name: "General Knowledge"},
	{ID: 11, Name: "Entertainment: Film"},
	{ID: 12, Name: "Entertainment: Music"},
	{ID: 22, Name: "Geography"},
	{ID: 30, Name: "Science: Gadgets"},
	{ID: 18, Name: "Science: Computers"},
	{ID: 28, Name: "Vehicles"},
	{ID: 27, Name: "Animals"},
	{ID: 23, Name: "History"},
	{ID: 15, Name: "Entertainment: Video Games"},
}

// Fetcher returns one raw question for a category.
type Fetcher interface {
	Fetch(ctx context.Context, category int) (RawQuestion, error)
}

// Provider picks a category, fetches a raw question and builds it.
type Provider struct {
	fetcher    Fetcher
	categories []Category
	clock      clockwork.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

func WithRand(src rand.Source) ProviderOption {
	return func(p *Provider) { p.rng = rand.New(src) }
}

func WithCategories(categories []Category) ProviderOption {
	return func(p *Provider) {
		if len(categories) > 0 {
			p.categories = categories
		}
	}
}

func WithProviderClock(clock clockwork.Clock) ProviderOption {
	return func(p *Provider) { p.clock = clock }
}

func NewProvider(fetcher Fetcher, opts ...ProviderOption) *Provider {
	p := &Provider{
		fetcher:    fetcher,
		categories: Categories,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	return p
}

// FetchQuestion implements app.QuestionProvider.
func (p *Provider) FetchQuestion(ctx context.Context) (domain.Question, error) {
	p.mu.Lock()
	category := p.categories[p.rng.IntN(len(p.categories))]
	p.mu.Unlock()

	raw, err := p.fetcher.Fetch(ctx, category.ID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("category %d: %w", category.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return BuildQuestion(raw, p.rng, p.clock.Now())
}

// BuildQuestion decodes raw, shuffles its choices and fixes the order in which
// wrong choices are eliminated.
func BuildQuestion(raw RawQuestion, rng *rand.Rand, now time.Time) (domain.Question, error) {
	text := html.UnescapeString(raw.Question)
	correct := html.UnescapeString(raw.CorrectAnswer)
	if strings.TrimSpace(text) == "" || strings.TrimSpace(correct) == "" {
		return domain.Question{}, fmt.Errorf("%w: missing question or correct answer", domain.ErrProviderUnavailable)
	}

	wrong := make([]string, 0, len(raw.IncorrectAnswers))
	for _, a := range raw.IncorrectAnswers {
		decoded := html.UnescapeString(a)
		if decoded == correct {
			continue
		}
		wrong = append(wrong, decoded)
	}
	if len(wrong) == 0 {
		return domain.Question{}, fmt.Errorf("%w: no incorrect answers", domain.ErrProviderUnavailable)
	}

	choices := append(append([]string(nil), wrong...), correct)
	rng.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })

	order := append([]string(nil), wrong...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	order = order[:len(order)-1]

	return domain.Question{
		ID:               uuid.NewString(),
		Text:             text,
		Category:         html.UnescapeString(raw.Category),
		Difficulty:       html.UnescapeString(raw.Difficulty),
		CorrectChoice:    correct,
		Choices:          choices,
		EliminationOrder: order,
		FetchedAt:        now.UTC(),
	}, nil
}

// StaticProvider serves a fixed rotation of raw questions, for offline play.
type StaticProvider struct {
	mu    sync.Mutex
	raw   []RawQuestion
	next  int
	rng   *rand.Rand
	clock clockwork.Clock
}

// NewStaticProvider serves raw in order. A nil src or clock falls back to a
// runtime seed and the real clock.
func NewStaticProvider(raw []RawQuestion, src rand.Source, clock clockwork.Clock) *StaticProvider {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StaticProvider{raw: raw, rng: rand.New(src), clock: clock}
}

func (p *StaticProvider) FetchQuestion(_ context.Context) (domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.raw) == 0 {
		return domain.Question{}, fmt.Errorf("%w: no offline questions", domain.ErrProviderUnavailable)
	}
	raw := p.raw[p.next%len(p.raw)]
	p.next++
	return BuildQuestion(raw, p.rng, p.clock.Now())
}

// OfflineQuestions is a small built-in pool used when the API is disabled.
var OfflineQuestions = []RawQuestion{
	{
		Type: "multiple", Difficulty: "easy", Category: "Geography",
		Question:         "What is the capital of France?",
		CorrectAnswer:    "Paris",
		IncorrectAnswers: []string{"Lyon", "Marseille", "Nice"},
	},
	{
		Type: "multiple", Difficulty: "medium", Category: "Science: Computers",
		Question:         "What does &quot;HTTP&quot; stand for?",
		CorrectAnswer:    "Hypertext Transfer Protocol",
		IncorrectAnswers: []string{"High Transfer Text Protocol", "Hyperlink Transmission Process", "Host Text Transfer Program"},
	},
	{
		Type: "multiple", Difficulty: "easy", Category: "Animals",
		Question:         "Which animal can&#039;t hop if its tail is lifted off the ground?",
		CorrectAnswer:    "Kangaroo",
		IncorrectAnswers: []string{"Rabbit", "Frog", "Wallaby"},
	},
	{
		Type: "boolean", Difficulty: "easy", Category: "History",
		Question:         "Smallpox has been eradicated.",
		CorrectAnswer:    "True",
		IncorrectAnswers: []string{"False"},
	},
}
