package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livetrivia/internal/app"
	"livetrivia/internal/config"
	"livetrivia/internal/logging"
	"livetrivia/internal/metrics"
	"livetrivia/internal/trivia"
	transport "livetrivia/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return err
	}
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	clock := clockwork.NewRealClock()
	coordinator := app.NewCoordinator(newProvider(cfg, clock, log), st.clock,
		app.WithClock(clock),
		app.WithDurations(
			config.Duration(cfg.Game.QuestionDuration, app.DefaultQuestionDuration),
			config.Duration(cfg.Game.IntermissionDuration, app.DefaultIntermissionDuration),
		),
		app.WithRetryBackoff(config.Duration(cfg.Game.RetryBackoff, app.DefaultRetryBackoff)),
		app.WithFetchTimeout(config.Duration(cfg.Game.FetchTimeout, app.DefaultFetchTimeout)),
		app.WithQuestionStore(st.questions),
		app.WithLogger(log.With().Str("component", "clock").Logger()),
		app.WithMetrics(m),
	)
	// A provider outage is logged inside Start; only a clock store failure stops us.
	if err := coordinator.Start(ctx); err != nil {
		return err
	}

	opts := []app.GameOption{
		app.WithProfiles(st.profiles),
		app.WithQuestions(st.questions),
		app.WithScorer(newScorer(cfg, coordinator.QuestionDuration())),
		app.WithMessages(app.NewMessageGenerator(cfg.Game.MessageSalt)),
		app.WithServiceLogger(log.With().Str("component", "game").Logger()),
		app.WithServiceMetrics(m),
	}
	avatars, err := newAvatars(ctx, cfg, log)
	if err != nil {
		return err
	}
	if avatars != nil {
		opts = append(opts, app.WithAvatars(avatars))
	}
	service := app.NewGameService(coordinator, st.ledger, opts...)

	handler := transport.NewRouter(service, transport.RouterConfig{
		Auth:        transport.NewAuthenticator(cfg.Auth.JWTSecret),
		CORSOrigins: cfg.Server.CORSOrigins,
		Gatherer:    reg,
		Logger:      log.With().Str("component", "http").Logger(),
	})
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret not set; trusting X-User-ID headers")
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

const defaultUserAgent = "livetrivia"

func newProvider(cfg config.Config, clock clockwork.Clock, log zerolog.Logger) app.QuestionProvider {
	if cfg.Provider.Offline {
		log.Warn().Msg("question provider offline; serving the built-in rotation")
		return trivia.NewStaticProvider(trivia.OfflineQuestions, nil, clock)
	}
	client := trivia.NewClient(cfg.Provider.BaseURL, config.Duration(cfg.Provider.Timeout, trivia.DefaultTimeout))
	agent := cfg.Provider.UserAgent
	if agent == "" {
		agent = defaultUserAgent
	}
	client.SetHeader("User-Agent", agent)
	return trivia.NewProvider(client, trivia.WithProviderClock(clock))
}

func newScorer(cfg config.Config, window time.Duration) app.Scorer {
	s := app.Scorer{
		Max:         app.DefaultMaxPoints,
		Floor:       app.DefaultFloorPoints,
		Window:      window,
		TrustClient: cfg.Scoring.TrustClientPoints,
	}
	if cfg.Scoring.Max > 0 {
		s.Max = cfg.Scoring.Max
	}
	if cfg.Scoring.Floor > 0 && cfg.Scoring.Floor <= s.Max {
		s.Floor = cfg.Scoring.Floor
	}
	return s
}
