package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/domain"
	"github.com/tenroll/internal/memstore"
	"github.com/tenroll/internal/service"
)

func newService() (*service.GameService, *memstore.Store) {
	store := memstore.New()
	cfg := &config.LeaderboardConfig{DefaultLimit: 50, MaxLimit: 100}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewGameService(store, cfg, logger), store
}

func strPtr(s string) *string { return &s }

// playGame creates a game and records count rolls of (dieA, dieB).
func playGame(t *testing.T, svc *service.GameService, count, dieA, dieB int) *domain.Game {
	t.Helper()
	ctx := context.Background()

	game, err := svc.CreateGame(ctx)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	for i := 0; i < count; i++ {
		if _, err := svc.RecordRoll(ctx, game.ID, domain.RollRequest{DieA: dieA, DieB: dieB}); err != nil {
			t.Fatalf("RecordRoll %d: %v", i, err)
		}
	}
	return game
}

func TestCreateGameStartsEmpty(t *testing.T) {
	svc, _ := newService()
	game, err := svc.CreateGame(context.Background())
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if game.ID == "" {
		t.Error("game has no ID")
	}
	if game.RollCount != 0 || game.TotalScore != 0 {
		t.Errorf("new game counters = (%d, %d), want (0, 0)", game.RollCount, game.TotalScore)
	}
	if game.PlayerName != nil || game.CompletedAt != nil {
		t.Error("new game should have no player name or completion timestamp")
	}
	if game.CreatedAt.IsZero() {
		t.Error("new game has no creation timestamp")
	}
}

func TestFullGame(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	game := playGame(t, svc, 10, 3, 4)

	finished, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{PlayerName: strPtr("jane doe")})
	if err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	if finished.TotalScore != 70 {
		t.Errorf("TotalScore = %d, want 70", finished.TotalScore)
	}
	if finished.RollCount != 10 {
		t.Errorf("RollCount = %d, want 10", finished.RollCount)
	}
	if finished.PlayerName == nil || *finished.PlayerName != "Jane Doe" {
		t.Errorf("PlayerName = %v, want Jane Doe", finished.PlayerName)
	}
	if finished.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	// Counters remained consistent with the roll rows throughout.
	rolls := store.Rolls(game.ID)
	if len(rolls) != finished.RollCount {
		t.Errorf("stored %d rolls, game counts %d", len(rolls), finished.RollCount)
	}
	sum := 0
	for i, roll := range rolls {
		if roll.Index != i {
			t.Errorf("roll %d has index %d", i, roll.Index)
		}
		if roll.Sum != roll.DieA+roll.DieB {
			t.Errorf("roll %d stored sum %d, dice sum %d", i, roll.Sum, roll.DieA+roll.DieB)
		}
		sum += roll.Sum
	}
	if sum != finished.TotalScore {
		t.Errorf("sum of rolls %d != TotalScore %d", sum, finished.TotalScore)
	}
}

func TestRollAssignsSequentialIndices(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	game := playGame(t, svc, 0, 0, 0)
	for i := 0; i < 10; i++ {
		roll, err := svc.RecordRoll(ctx, game.ID, domain.RollRequest{DieA: 1, DieB: 6})
		if err != nil {
			t.Fatalf("RecordRoll %d: %v", i, err)
		}
		if roll.Index != i {
			t.Errorf("roll %d assigned index %d", i, roll.Index)
		}
		if roll.Sum != 7 {
			t.Errorf("roll %d sum = %d, want 7", i, roll.Sum)
		}

		// Monotonic counters after every roll.
		current, err := svc.GetGame(ctx, game.ID)
		if err != nil {
			t.Fatalf("GetGame: %v", err)
		}
		if current.RollCount != i+1 {
			t.Errorf("after roll %d RollCount = %d", i, current.RollCount)
		}
		if current.TotalScore != (i+1)*7 {
			t.Errorf("after roll %d TotalScore = %d", i, current.TotalScore)
		}
	}
}

func TestEleventhRollFails(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	game := playGame(t, svc, 10, 2, 2)
	if _, err := svc.RecordRoll(ctx, game.ID, domain.RollRequest{DieA: 2, DieB: 2}); !errors.Is(err, domain.ErrMaxRollsReached) {
		t.Errorf("11th roll error = %v, want ErrMaxRollsReached", err)
	}
}

func TestRollDiceValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	game := playGame(t, svc, 0, 0, 0)

	invalid := []domain.RollRequest{
		{DieA: 0, DieB: 3},
		{DieA: 7, DieB: 3},
		{DieA: 3, DieB: -1},
		{DieA: 3, DieB: 7},
	}
	for _, req := range invalid {
		if _, err := svc.RecordRoll(ctx, game.ID, req); !errors.Is(err, domain.ErrInvalidDice) {
			t.Errorf("RecordRoll(%d, %d) error = %v, want ErrInvalidDice", req.DieA, req.DieB, err)
		}
	}

	// Validation happens before storage: invalid dice win over a missing game.
	if _, err := svc.RecordRoll(ctx, "not-a-game", domain.RollRequest{DieA: 9, DieB: 9}); !errors.Is(err, domain.ErrInvalidDice) {
		t.Errorf("error = %v, want ErrInvalidDice before lookup", err)
	}

	// All 36 valid combinations succeed across games.
	for a := 1; a <= 6; a++ {
		for b := 1; b <= 6; b++ {
			g := playGame(t, svc, 0, 0, 0)
			if _, err := svc.RecordRoll(ctx, g.ID, domain.RollRequest{DieA: a, DieB: b}); err != nil {
				t.Errorf("RecordRoll(%d, %d) failed: %v", a, b, err)
			}
		}
	}
}

func TestRollOnUnknownGame(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, err := svc.RecordRoll(ctx, "c1f5a8d0-0000-0000-0000-000000000000", domain.RollRequest{DieA: 1, DieB: 1}); !errors.Is(err, domain.ErrGameNotFound) {
		t.Errorf("error = %v, want ErrGameNotFound", err)
	}
	// A malformed id can never reference a game.
	if _, err := svc.RecordRoll(ctx, "definitely-not-a-uuid", domain.RollRequest{DieA: 1, DieB: 1}); !errors.Is(err, domain.ErrGameNotFound) {
		t.Errorf("error = %v, want ErrGameNotFound", err)
	}
	if _, err := svc.GetGame(ctx, "definitely-not-a-uuid"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Errorf("GetGame error = %v, want ErrGameNotFound", err)
	}
}

func TestRollOnCompletedGame(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	game := playGame(t, svc, 10, 1, 1)
	if _, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{}); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	if _, err := svc.RecordRoll(ctx, game.ID, domain.RollRequest{DieA: 1, DieB: 1}); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Errorf("error = %v, want ErrAlreadyCompleted", err)
	}
}

func TestPrematureFinish(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	game := playGame(t, svc, 3, 2, 5)
	if _, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{}); !errors.Is(err, domain.ErrGameIncomplete) {
		t.Errorf("error = %v, want ErrGameIncomplete", err)
	}

	// The failed finish left the game in progress.
	current, err := svc.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if current.CompletedAt != nil {
		t.Error("failed finish stamped CompletedAt")
	}
}

func TestDoubleFinish(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	game := playGame(t, svc, 10, 4, 4)
	first, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{})
	if err != nil {
		t.Fatalf("first FinishGame: %v", err)
	}
	if _, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{}); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Errorf("second finish error = %v, want ErrAlreadyCompleted", err)
	}

	// Terminal game is frozen: re-reads return identical values.
	current, err := svc.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if !current.CompletedAt.Equal(*first.CompletedAt) {
		t.Error("CompletedAt changed after rejected second finish")
	}
	if current.TotalScore != first.TotalScore || current.RollCount != first.RollCount {
		t.Error("counters changed after completion")
	}
}

func TestFinishWithInvalidName(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	game := playGame(t, svc, 10, 3, 3)
	if _, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{PlayerName: strPtr("123!!!")}); !errors.Is(err, domain.ErrInvalidPlayerName) {
		t.Fatalf("error = %v, want ErrInvalidPlayerName", err)
	}

	// Name validation failed before the transition: the game is still open
	// and can be finished afterwards.
	finished, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{})
	if err != nil {
		t.Fatalf("FinishGame after rejected name: %v", err)
	}
	if finished.PlayerName != nil {
		t.Errorf("PlayerName = %q, want nil", *finished.PlayerName)
	}
}

func TestRollIdempotency(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	game := playGame(t, svc, 0, 0, 0)
	first, err := svc.RecordRoll(ctx, game.ID, domain.RollRequest{DieA: 5, DieB: 2, ClientRollID: "attempt-1"})
	if err != nil {
		t.Fatalf("RecordRoll: %v", err)
	}

	// A network retry of the committed roll is a no-op returning the
	// original result.
	retry, err := svc.RecordRoll(ctx, game.ID, domain.RollRequest{DieA: 5, DieB: 2, ClientRollID: "attempt-1"})
	if err != nil {
		t.Fatalf("retried RecordRoll: %v", err)
	}
	if retry.ID != first.ID || retry.Index != first.Index {
		t.Errorf("retry returned a different roll: %+v vs %+v", retry, first)
	}

	current, err := svc.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if current.RollCount != 1 {
		t.Errorf("RollCount = %d after retried roll, want 1", current.RollCount)
	}
	if current.TotalScore != 7 {
		t.Errorf("TotalScore = %d after retried roll, want 7", current.TotalScore)
	}
}

func TestLeaderboardOrderingAndPagination(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	finish := func(g *domain.Game, name string) *domain.Game {
		t.Helper()
		finished, err := svc.FinishGame(ctx, g.ID, domain.FinishRequest{PlayerName: strPtr(name)})
		if err != nil {
			t.Fatalf("FinishGame: %v", err)
		}
		return finished
	}

	// older and newer tie at 70; high wins outright; open never appears.
	older := finish(playGame(t, svc, 10, 3, 4), "older")
	newer := finish(playGame(t, svc, 10, 4, 3), "newer")
	high := finish(playGame(t, svc, 10, 6, 6), "high")
	playGame(t, svc, 10, 6, 6) // never finished

	page, err := svc.Leaderboard(ctx, 50, 1)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(page.Games) != 3 {
		t.Fatalf("leaderboard has %d games, want 3 (completed only)", len(page.Games))
	}
	if page.Games[0].ID != high.ID {
		t.Errorf("rank 1 = %s, want highest score", page.Games[0].ID)
	}
	// Tied scores rank the more recently created game first.
	if page.Games[1].ID != newer.ID || page.Games[2].ID != older.ID {
		t.Errorf("tie-break order = [%s %s], want newer before older", page.Games[1].ID, page.Games[2].ID)
	}

	// Offset pagination with counts.
	page1, err := svc.Leaderboard(ctx, 2, 1)
	if err != nil {
		t.Fatalf("Leaderboard page 1: %v", err)
	}
	if len(page1.Games) != 2 || page1.Pagination.Total != 3 || page1.Pagination.TotalPages != 2 {
		t.Errorf("page 1 = %d games, pagination %+v", len(page1.Games), page1.Pagination)
	}
	page2, err := svc.Leaderboard(ctx, 2, 2)
	if err != nil {
		t.Fatalf("Leaderboard page 2: %v", err)
	}
	if len(page2.Games) != 1 || page2.Pagination.Page != 2 {
		t.Errorf("page 2 = %d games, pagination %+v", len(page2.Games), page2.Pagination)
	}

	// Out-of-range page returns an empty page, not an error.
	page9, err := svc.Leaderboard(ctx, 2, 9)
	if err != nil {
		t.Fatalf("Leaderboard page 9: %v", err)
	}
	if len(page9.Games) != 0 {
		t.Errorf("page 9 has %d games, want 0", len(page9.Games))
	}
}

func TestLeaderboardLimitClamping(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	page, err := svc.Leaderboard(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if page.Pagination.Limit != 50 || page.Pagination.Page != 1 {
		t.Errorf("defaults = limit %d page %d, want 50/1", page.Pagination.Limit, page.Pagination.Page)
	}

	page, err = svc.Leaderboard(ctx, 1000, 1)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if page.Pagination.Limit != 100 {
		t.Errorf("limit = %d, want clamped to 100", page.Pagination.Limit)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	// No completed games: everything zero, average included.
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalGames != 0 || stats.AverageScorePerGame != 0 {
		t.Errorf("empty stats = %+v, want zeroes", stats)
	}

	// One completed game of ten (1,6) rolls, one open game that must not
	// count.
	game := playGame(t, svc, 10, 1, 6)
	if _, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{}); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	playGame(t, svc, 5, 6, 1)

	stats, err = svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalGames != 1 {
		t.Errorf("TotalGames = %d, want 1", stats.TotalGames)
	}
	if stats.TotalScoreAllTime != 70 {
		t.Errorf("TotalScoreAllTime = %d, want 70", stats.TotalScoreAllTime)
	}
	if stats.AverageScorePerGame != 70 {
		t.Errorf("AverageScorePerGame = %v, want 70", stats.AverageScorePerGame)
	}
	if stats.SumDistribution[7] != 10 {
		t.Errorf("SumDistribution[7] = %d, want 10", stats.SumDistribution[7])
	}
	// Pair counts are order-sensitive: ten (1,6) rolls fill cell [0][5]
	// only, and the open game's (6,1) rolls never appear.
	if stats.PairDistribution[0][5] != 10 {
		t.Errorf("PairDistribution[0][5] = %d, want 10", stats.PairDistribution[0][5])
	}
	if stats.PairDistribution[5][0] != 0 {
		t.Errorf("PairDistribution[5][0] = %d, want 0", stats.PairDistribution[5][0])
	}
}

func TestTopWithoutCache(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	for i, score := range []int{6, 2, 4} {
		game := playGame(t, svc, 10, score, score)
		name := string(rune('a' + i))
		if _, err := svc.FinishGame(ctx, game.ID, domain.FinishRequest{PlayerName: strPtr(name)}); err != nil {
			t.Fatalf("FinishGame: %v", err)
		}
	}

	entries, err := svc.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Top returned %d entries, want 2", len(entries))
	}
	if entries[0].Score != 120 || entries[0].Rank != 1 {
		t.Errorf("top entry = %+v, want score 120 rank 1", entries[0])
	}
	if entries[1].Score != 80 || entries[1].Rank != 2 {
		t.Errorf("second entry = %+v, want score 80 rank 2", entries[1])
	}
}
