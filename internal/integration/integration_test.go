package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
	"quiz-game-service/internal/infra/memory"
	pgsource "quiz-game-service/internal/infra/postgres"
	pgmigrations "quiz-game-service/internal/infra/postgres/migrations"
	redisinfra "quiz-game-service/internal/infra/redis"
	"quiz-game-service/internal/leaderboard"
	"quiz-game-service/internal/quizdata"
)

const questionSetID = "general-knowledge"

const questionSetJSON = `{"questions": [
	{"id": 1, "text": "What is 2 + 2?", "options": ["3", "4", "5"], "correctAnswer": 1},
	{"id": 2, "text": "Capital of France?", "options": ["Paris", "Rome"], "correctAnswer": 0},
	{"id": 3, "text": "Largest ocean?", "options": ["Atlantic", "Pacific"], "correctAnswer": 1}
]}`

func TestFullGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestionSet(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	fetcher := redisinfra.NewSourceCache(redisClient, pgsource.NewQuestionSource(pool), 5*time.Minute)
	board := leaderboard.New(redisinfra.NewKV(redisClient))
	games := redisinfra.NewGameRegistry(redisClient, 5*time.Minute)
	service := app.NewGameService(games, quizdata.NewLoader(fetcher), board, app.GameConfig{
		Source: questionSetID,
		Retry:  quizdata.RetryPolicy{Attempts: 1},
	})

	game := service.NewGame()
	if _, err := service.Start(ctx, game.GameID); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, selected := range []int{1, 0, 0} { // correct, correct, wrong
		if _, _, err := service.Answer(game.GameID, selected); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	snap, err := service.Restart(game.GameID)
	if err != nil || snap.Status != domain.StatusReady {
		t.Fatalf("restart: %+v %v", snap, err)
	}

	// A second run hits the redis-cached payload rather than postgres.
	if _, err := service.Start(ctx, game.GameID); err != nil {
		t.Fatalf("second start: %v", err)
	}
	for _, selected := range []int{1, 0, 1} { // all correct
		if _, _, err := service.Answer(game.GameID, selected); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	entry, err := service.SubmitHighScore(ctx, game.GameID, "Alice")
	if err != nil {
		t.Fatalf("submit high score: %v", err)
	}
	if entry.Percentage != 100 {
		t.Fatalf("expected 100%%, got %+v", entry)
	}

	entries, err := service.Leaderboard(ctx)
	if err != nil || len(entries) != 1 || entries[0].PlayerName != "Alice" {
		t.Fatalf("unexpected leaderboard: %+v %v", entries, err)
	}
}

func TestLoadFallsBackThroughRetry(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	fetcher := redisinfra.NewSourceCache(redisClient, memory.NewStaticFetcher(map[string][]byte{
		"set": []byte(questionSetJSON),
	}), 5*time.Minute)
	loader := quizdata.NewLoader(fetcher)

	result, err := quizdata.LoadWithRetry(ctx, loader, "set", quizdata.LoadOptions{}, quizdata.DefaultRetryPolicy)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(result.Questions))
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestionSet(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO question_sets (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, questionSetID, questionSetJSON); err != nil {
		t.Fatalf("insert question set: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
