package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/domain"
	"github.com/tenroll/internal/postgres"
)

type sampleGame struct {
	playerName  string
	totalScore  int
	completedAt time.Time
}

// Sample players with a deliberate tie (Alice and Bob on 85) so the
// leaderboard's recency tie-break is visible in a fresh database.
var sampleGames = []sampleGame{
	{"Alice", 85, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
	{"Bob", 85, time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)},
	{"Charlie", 92, time.Date(2024, 1, 14, 15, 30, 0, 0, time.UTC)},
	{"Diana", 78, time.Date(2024, 1, 16, 9, 15, 0, 0, time.UTC)},
	{"Eve", 88, time.Date(2024, 1, 13, 14, 20, 0, 0, time.UTC)},
	{"Frank", 91, time.Date(2024, 1, 12, 16, 45, 0, 0, time.UTC)},
	{"Grace", 87, time.Date(2024, 1, 14, 11, 10, 0, 0, time.UTC)},
	{"Henry", 89, time.Date(2024, 1, 11, 13, 25, 0, 0, time.UTC)},
	{"Ivy", 86, time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)},
	{"Jack", 90, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)},
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	wipe := flag.Bool("wipe", false, "Delete all games and rolls instead of seeding")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx := context.Background()

	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if *wipe {
		rolls, games, err := repo.WipeAll(ctx)
		if err != nil {
			logger.Error("wipe failed", "error", err)
			os.Exit(1)
		}
		logger.Info("wiped database", "games", games, "rolls", rolls)
		return
	}

	// Seeding always starts from a clean slate.
	if _, _, err := repo.WipeAll(ctx); err != nil {
		logger.Error("failed to clear existing data", "error", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, sample := range sampleGames {
		game, rolls := buildCompletedGame(rng, sample)
		if err := repo.InsertCompletedGame(ctx, game, rolls); err != nil {
			logger.Error("failed to insert game", "player", sample.playerName, "error", err)
			os.Exit(1)
		}
		logger.Info("created game", "player", sample.playerName, "score", sample.totalScore)
	}

	logger.Info("seeding completed", "games", len(sampleGames))
}

// buildCompletedGame constructs a finished game whose ten roll sums add up
// exactly to the sample's total score.
func buildCompletedGame(rng *rand.Rand, sample sampleGame) (*domain.Game, []domain.Roll) {
	gameID := uuid.New().String()
	createdAt := sample.completedAt.Add(-time.Duration(domain.MaxRolls) * time.Minute)
	completedAt := sample.completedAt
	name := sample.playerName

	rolls := make([]domain.Roll, 0, domain.MaxRolls)
	remaining := sample.totalScore
	for i := 0; i < domain.MaxRolls; i++ {
		left := domain.MaxRolls - i - 1
		// Keep the remainder reachable with the rolls still to come.
		lo := remaining - 12*left
		hi := remaining - 2*left
		sum := 2 + rng.Intn(11)
		if sum < lo {
			sum = lo
		}
		if sum > hi {
			sum = hi
		}
		remaining -= sum

		dieA := sum / 2
		dieB := sum - dieA
		rolls = append(rolls, domain.Roll{
			ID:        uuid.New().String(),
			GameID:    gameID,
			Index:     i,
			DieA:      dieA,
			DieB:      dieB,
			Sum:       sum,
			CreatedAt: createdAt.Add(time.Duration(i) * time.Minute),
		})
	}

	game := &domain.Game{
		ID:          gameID,
		PlayerName:  &name,
		TotalScore:  sample.totalScore,
		RollCount:   domain.MaxRolls,
		CreatedAt:   createdAt,
		CompletedAt: &completedAt,
	}
	return game, rolls
}
