package cli

import (
	"context"
	_ "embed"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/config"
	"quiz-game-service/internal/infra/memory"
	pgsource "quiz-game-service/internal/infra/postgres"
	redisinfra "quiz-game-service/internal/infra/redis"
	"quiz-game-service/internal/leaderboard"
	"quiz-game-service/internal/quizdata"
	transport "quiz-game-service/internal/transport/http"
)

// sampleSource names the embedded question set used when nothing is configured.
const sampleSource = "sample"

//go:embed questions.json
var sampleQuestionsJSON []byte

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz game server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	source := cfg.Quiz.Source
	fetcher := buildFetcher(cfg, pool, &source)
	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if redisClient != nil {
		fetcher = redisinfra.NewSourceCache(redisClient, fetcher, cacheTTL)
	} else {
		fetcher = memory.NewSourceCache(fetcher, cacheTTL)
	}

	var kv leaderboard.KV
	if redisClient != nil {
		kv = redisinfra.NewKV(redisClient)
	} else {
		kv = memory.NewKV()
	}
	board := leaderboard.NewWithOptions(kv, cfg.Leaderboard.Key, cfg.Leaderboard.Size)

	var games app.GameRepository
	if redisClient != nil {
		games = redisinfra.NewGameRegistry(redisClient, redisTTL)
	} else {
		games = memory.NewGameStore()
	}

	service := app.NewGameService(games, quizdata.NewLoader(fetcher), board, app.GameConfig{
		Source: source,
		Load: quizdata.LoadOptions{
			Category:     cfg.Quiz.Category,
			Shuffle:      config.BoolOr(cfg.Quiz.Shuffle, true),
			MaxQuestions: config.IntOr(cfg.Quiz.MaxQuestions, quizdata.DefaultMaxQuestions),
		},
		Retry: quizdata.DefaultRetryPolicy,
		Session: app.SessionOptions{
			QuestionTime:  config.TTLDuration(cfg.Quiz.QuestionTime, 0),
			FeedbackDelay: config.TTLDuration(cfg.Quiz.FeedbackDelay, app.DefaultFeedbackDelay),
		},
	})
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz game service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildFetcher picks the retrieval collaborator for the configured source:
// postgres question sets, remote endpoints, local files, or the embedded
// sample set when nothing is configured. Open Trivia DB payloads get a
// format-rewriting wrapper.
func buildFetcher(cfg config.Config, pool *pgxpool.Pool, source *string) quizdata.Fetcher {
	var fetcher quizdata.Fetcher
	switch {
	case pool != nil:
		fetcher = pgsource.NewQuestionSource(pool)
	case *source == "":
		*source = sampleSource
		fetcher = memory.NewStaticFetcher(map[string][]byte{sampleSource: sampleQuestionsJSON})
	case strings.HasPrefix(*source, "http://") || strings.HasPrefix(*source, "https://"):
		fetcher = quizdata.NewHTTPFetcher(0)
	default:
		fetcher = quizdata.NewFileFetcher()
	}

	if cfg.Quiz.Format == "opentdb" {
		fetcher = quizdata.NewOpenTriviaFetcher(fetcher)
	}
	return fetcher
}
