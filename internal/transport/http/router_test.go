package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livetrivia/internal/app"
	"livetrivia/internal/domain"
	"livetrivia/internal/infra/memory"
	"livetrivia/internal/metrics"
	"livetrivia/internal/trivia"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *httptest.Server
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T, secret string) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// The static rotation starts with "What is the capital of France?".
	provider := trivia.NewStaticProvider(trivia.OfflineQuestions, rand.NewPCG(1, 2), clock)
	coordinator := app.NewCoordinator(provider, memory.NewClockStore(),
		app.WithClock(clock),
		app.WithMetrics(m),
	)
	require.NoError(t, coordinator.Start(context.Background()))
	service := app.NewGameService(coordinator, memory.NewLedgerStore(), app.WithServiceMetrics(m))

	handler := NewRouter(service, RouterConfig{
		Auth:     NewAuthenticator(secret),
		Gatherer: reg,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return fixture{server: server, clock: clock}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (f fixture) do(t *testing.T, method, path, user string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Name", strings.ToUpper(user))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, "")

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f.do(t, http.MethodGet, "/api/v1/session", "u1", nil)
	resp, err = http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "trivia_resolve_total")
}

func TestRequestsNeedIdentity(t *testing.T) {
	f := newFixture(t, "")
	status, env := f.do(t, http.MethodGet, "/api/v1/session", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.False(t, env.Success)
	require.NotEmpty(t, env.Error)
}

func TestSessionAndAnswerFlow(t *testing.T) {
	f := newFixture(t, "")

	status, env := f.do(t, http.MethodGet, "/api/v1/session", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)
	var view struct {
		Phase       string `json:"phase"`
		RemainingMS int64  `json:"remainingMs"`
		Question    struct {
			Text    string   `json:"text"`
			Choices []string `json:"choices"`
		} `json:"question"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "question", view.Phase)
	require.Equal(t, int64(15000), view.RemainingMS)
	require.Equal(t, "What is the capital of France?", view.Question.Text)
	require.NotContains(t, string(env.Data), "correctChoice")

	f.clock.Advance(3 * time.Second)
	status, env = f.do(t, http.MethodPost, "/api/v1/answers", "u1", map[string]interface{}{"answer": "Paris", "points": 99999})
	require.Equal(t, http.StatusCreated, status)
	var answer answerResponse
	require.NoError(t, json.Unmarshal(env.Data, &answer))
	require.True(t, answer.Correct)
	require.Equal(t, 820, answer.Points, "points are derived server side")

	status, env = f.do(t, http.MethodPost, "/api/v1/answers", "u1", map[string]interface{}{"answer": "Lyon"})
	require.Equal(t, http.StatusConflict, status)
	require.False(t, env.Success)

	status, env = f.do(t, http.MethodGet, "/api/v1/answers/"+answer.ID.String()+"/waiting", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var waiting domain.WaitingView
	require.NoError(t, json.Unmarshal(env.Data, &waiting))
	require.False(t, waiting.Redirect)
	require.Len(t, waiting.Scoreboard, 1)
	require.Equal(t, "U1", waiting.Scoreboard[0].Username)

	f.clock.Advance(13 * time.Second)
	_, env = f.do(t, http.MethodGet, "/api/v1/answers/"+answer.ID.String()+"/waiting", "u1", nil)
	require.NoError(t, json.Unmarshal(env.Data, &waiting))
	require.True(t, waiting.Redirect)

	status, env = f.do(t, http.MethodGet, "/api/v1/session", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(env.Data), `"phase":"intermission"`)
	require.Contains(t, string(env.Data), `"message":`)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, "")

	status, _ := f.do(t, http.MethodGet, "/api/v1/answers/not-a-uuid/waiting", "u1", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/answers/2b1c3c8e-9a55-4a55-8f4a-1f0d7f6f2d11/waiting", "u1", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/rank?window=fortnight", "u1", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/leaderboards/fortnight", "u1", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestLeaderboardsAndRank(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodPost, "/api/v1/answers", "u1", map[string]interface{}{"answer": "Paris"})
	f.do(t, http.MethodPost, "/api/v1/answers", "u2", map[string]interface{}{"answer": "Nice"})

	status, env := f.do(t, http.MethodGet, "/api/v1/leaderboards", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var lbs map[string][]domain.LeaderboardEntry
	require.NoError(t, json.Unmarshal(env.Data, &lbs))
	require.Len(t, lbs, 5)
	require.Equal(t, "u1", lbs["alltime"][0].UserID)
	require.Equal(t, 1000, lbs["hour"][0].Points)

	status, env = f.do(t, http.MethodGet, "/api/v1/rank?window=day", "u2", nil)
	require.Equal(t, http.StatusOK, status)
	var rank domain.Rank
	require.NoError(t, json.Unmarshal(env.Data, &rank))
	require.Equal(t, 2, rank.Rank)
	require.Equal(t, domain.WindowDay, rank.Window)

	status, env = f.do(t, http.MethodGet, "/api/v1/leaderboards/week", "u2", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(env.Data), `"points":1000`)

	status, env = f.do(t, http.MethodGet, "/api/v1/message", "u2", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(env.Data), `"message"`)
}

func signToken(t *testing.T, secret, sub, name string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticatorWithSecret(t *testing.T) {
	auth := NewAuthenticator("s3cret")
	request := func(header string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return r
	}

	player, err := auth.Player(request("Bearer " + signToken(t, "s3cret", "u7", "Grace", time.Now().Add(time.Hour))))
	require.NoError(t, err)
	require.Equal(t, domain.Player{ID: "u7", Name: "Grace"}, player)

	r := httptest.NewRequest(http.MethodGet, "/ws?token="+signToken(t, "s3cret", "u8", "", time.Now().Add(time.Hour)), nil)
	player, err = auth.Player(r)
	require.NoError(t, err)
	require.Equal(t, "u8", player.Name, "name falls back to subject")

	for _, header := range []string{
		"",
		"Token abc",
		"Bearer " + signToken(t, "other", "u7", "Grace", time.Now().Add(time.Hour)),
		"Bearer " + signToken(t, "s3cret", "u7", "Grace", time.Now().Add(-time.Minute)),
		"Bearer " + signToken(t, "s3cret", "", "Grace", time.Now().Add(time.Hour)),
	} {
		_, err := auth.Player(request(header))
		require.ErrorIs(t, err, domain.ErrUnauthenticated, header)
	}

	// Dev headers are ignored once a secret is configured.
	r = request("")
	r.Header.Set("X-User-ID", "u1")
	_, err = auth.Player(r)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRouterWithJWT(t *testing.T) {
	f := newFixture(t, "s3cret")
	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/v1/session", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "u1", "Alice", time.Now().Add(time.Hour)))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, "")
	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/v1/answers", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://play.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessionUnavailableUntilFirstQuestion(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	coordinator := app.NewCoordinator(trivia.NewStaticProvider(nil, nil, clock), memory.NewClockStore(),
		app.WithClock(clock),
	)
	require.NoError(t, coordinator.Start(context.Background()), "a provider outage does not stop start-up")
	service := app.NewGameService(coordinator, memory.NewLedgerStore())
	server := httptest.NewServer(NewRouter(service, RouterConfig{Auth: NewAuthenticator("")}))
	t.Cleanup(server.Close)
	f := fixture{server: server, clock: clock}

	status, env := f.do(t, http.MethodGet, "/api/v1/session", "u1", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.False(t, env.Success)

	status, _ = f.do(t, http.MethodPost, "/api/v1/answers", "u1", map[string]interface{}{"answer": "Paris"})
	require.Equal(t, http.StatusServiceUnavailable, status)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
