package trivia

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"livetrivia/internal/domain"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func sampleRaw() RawQuestion {
	return RawQuestion{
		Type:             "multiple",
		Difficulty:       "medium",
		Category:         "Entertainment: Film",
		Question:         "Who directed &quot;Am&eacute;lie&quot;?",
		CorrectAnswer:    "Jean-Pierre Jeunet",
		IncorrectAnswers: []string{"Luc Besson", "Fran&ccedil;ois Ozon", "Jacques Audiard &amp; co"},
	}
}

func TestBuildQuestionDecodesEntities(t *testing.T) {
	q, err := BuildQuestion(sampleRaw(), rand.New(rand.NewPCG(1, 2)), time.Now())
	require.NoError(t, err)

	require.Equal(t, `Who directed "Amélie"?`, q.Text)
	require.ElementsMatch(t, []string{"Jean-Pierre Jeunet", "Luc Besson", "François Ozon", "Jacques Audiard & co"}, q.Choices)
	require.NotEmpty(t, q.ID)

	// Decoding plain text again changes nothing.
	again, err := BuildQuestion(RawQuestion{
		Question:         q.Text,
		CorrectAnswer:    q.CorrectChoice,
		IncorrectAnswers: []string{"François Ozon"},
	}, rand.New(rand.NewPCG(1, 2)), time.Now())
	require.NoError(t, err)
	require.Equal(t, q.Text, again.Text)
}

func TestBuildQuestionEliminationInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 200; i++ {
		q, err := BuildQuestion(sampleRaw(), rng, time.Now())
		require.NoError(t, err)

		require.Len(t, q.EliminationOrder, len(q.Choices)-2)
		require.NotContains(t, q.EliminationOrder, q.CorrectChoice)

		count := 0
		for _, c := range q.Choices {
			if c == q.CorrectChoice {
				count++
			}
		}
		require.Equal(t, 1, count)

		survivors := 0
		for _, c := range q.Choices {
			if c != q.CorrectChoice && !contains(q.EliminationOrder, c) {
				survivors++
			}
		}
		require.Equal(t, 1, survivors, "exactly one wrong choice survives")
	}
}

func TestBuildQuestionBooleanHasEmptyEliminationOrder(t *testing.T) {
	q, err := BuildQuestion(RawQuestion{
		Question:         "The sky is blue.",
		CorrectAnswer:    "True",
		IncorrectAnswers: []string{"False"},
	}, rand.New(rand.NewPCG(3, 4)), time.Now())
	require.NoError(t, err)
	require.Len(t, q.Choices, 2)
	require.Empty(t, q.EliminationOrder)
}

func TestBuildQuestionShufflesUniformly(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	raw := RawQuestion{Question: "q", CorrectAnswer: "a", IncorrectAnswers: []string{"b", "c"}}
	seen := map[string]int{}
	const n = 6000
	for i := 0; i < n; i++ {
		q, err := BuildQuestion(raw, rng, time.Now())
		require.NoError(t, err)
		seen[strings.Join(q.Choices, "")]++
	}
	require.Len(t, seen, 6)
	for perm, count := range seen {
		require.InDelta(t, n/6, count, n/6*0.2, "permutation %s", perm)
	}
}

func TestBuildQuestionRejectsMalformed(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	cases := []RawQuestion{
		{Question: "", CorrectAnswer: "a", IncorrectAnswers: []string{"b"}},
		{Question: "q", CorrectAnswer: "", IncorrectAnswers: []string{"b"}},
		{Question: "q", CorrectAnswer: "a"},
		{Question: "q", CorrectAnswer: "a", IncorrectAnswers: []string{"a"}},
	}
	for i, raw := range cases {
		_, err := BuildQuestion(raw, rng, time.Now())
		require.ErrorIs(t, err, domain.ErrProviderUnavailable, "case %d", i)
	}
}

func TestProviderFetchesFromAPI(t *testing.T) {
	var gotCategory, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api.php", r.URL.Path)
		gotAgent = r.Header.Get("User-Agent")
		require.Equal(t, "1", r.URL.Query().Get("amount"))
		gotCategory = r.URL.Query().Get("category")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response_code":0,"results":[{"type":"multiple","difficulty":"easy","category":"Geography","question":"Capital of Peru?","correct_answer":"Lima","incorrect_answers":["Quito","Bogot&aacute;","Cusco"]}]}`)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	client := NewClient(srv.URL, time.Second)
	client.SetHeader("User-Agent", "livetrivia-test")
	provider := NewProvider(client,
		WithRand(rand.NewPCG(5, 6)),
		WithCategories([]Category{{ID: 22, Name: "Geography"}}),
		WithProviderClock(clock),
	)
	q, err := provider.FetchQuestion(context.Background())
	require.NoError(t, err)
	require.Equal(t, "22", gotCategory)
	require.Equal(t, "livetrivia-test", gotAgent)
	require.Equal(t, clock.Now(), q.FetchedAt)
	require.Equal(t, "Lima", q.CorrectChoice)
	require.Contains(t, q.Choices, "Bogotá")
	require.Len(t, q.EliminationOrder, 2)
}

func TestProviderReportsUnavailable(t *testing.T) {
	responses := []struct {
		status int
		body   string
	}{
		{http.StatusInternalServerError, "boom"},
		{http.StatusOK, `{"response_code":1,"results":[]}`},
		{http.StatusOK, `{"response_code":0,"results":[]}`},
		{http.StatusOK, `not json`},
		{http.StatusOK, `{"response_code":0,"results":[{"question":"q","correct_answer":"a","incorrect_answers":[]}]}`},
	}
	for i, tc := range responses {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, tc.body)
		}))
		provider := NewProvider(NewClient(srv.URL, time.Second))
		_, err := provider.FetchQuestion(context.Background())
		require.True(t, errors.Is(err, domain.ErrProviderUnavailable), "case %d: %v", i, err)
		srv.Close()
	}
}

func TestProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	provider := NewProvider(NewClient(srv.URL, 100*time.Millisecond))
	_, err := provider.FetchQuestion(context.Background())
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestStaticProviderRotates(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	p := NewStaticProvider(OfflineQuestions, rand.NewPCG(1, 2), clock)
	var texts []string
	for range OfflineQuestions {
		q, err := p.FetchQuestion(context.Background())
		require.NoError(t, err)
		require.Equal(t, clock.Now(), q.FetchedAt, "stamped from the injected clock")
		texts = append(texts, q.Text)
		clock.Advance(time.Minute)
	}
	sort.Strings(texts)
	require.Contains(t, texts, `What does "HTTP" stand for?`)

	_, err := NewStaticProvider(nil, nil, nil).FetchQuestion(context.Background())
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
