package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/domain"
)

// Store is the transactional game storage consumed by the service. RecordRoll
// and FinishGame implementations must run their read-check-write sequence
// atomically per game so concurrent callers serialize.
type Store interface {
	CreateGame(ctx context.Context) (*domain.Game, error)
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)
	RecordRoll(ctx context.Context, gameID string, dieA, dieB int, clientRollID string) (*domain.Roll, error)
	FinishGame(ctx context.Context, gameID string, playerName *string) (*domain.Game, error)
	ListCompleted(ctx context.Context, limit, offset int) ([]domain.Game, int64, error)
	TopCompleted(ctx context.Context, limit int) ([]domain.Game, error)
	GameAggregates(ctx context.Context) (totalScore, totalGames int64, err error)
	SumCounts(ctx context.Context) (map[int]int64, error)
	PairCounts(ctx context.Context) (map[domain.DicePair]int64, error)
}

// Cache is the realtime leaderboard cache. All calls are best-effort.
type Cache interface {
	AddEntry(ctx context.Context, gameID, playerName string, score int64) error
	TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// Broadcaster pushes leaderboard updates to connected clients.
type Broadcaster interface {
	BroadcastLeaderboardUpdate(entry domain.LeaderboardEntry)
}

// EventPublisher emits game lifecycle events to the event stream.
type EventPublisher interface {
	Publish(event domain.GameEvent) error
}

// GameService provides business logic for the game lifecycle and the
// leaderboard/stats read side.
type GameService struct {
	store     Store
	cache     Cache
	hub       Broadcaster
	publisher EventPublisher
	config    *config.LeaderboardConfig
	logger    *slog.Logger
}

// NewGameService creates a new game service
func NewGameService(store Store, cfg *config.LeaderboardConfig, logger *slog.Logger) *GameService {
	return &GameService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// SetCache attaches the realtime leaderboard cache.
func (s *GameService) SetCache(cache Cache) {
	s.cache = cache
}

// SetHub attaches the websocket hub for leaderboard broadcasts.
func (s *GameService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// SetPublisher attaches the game event publisher.
func (s *GameService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// CreateGame allocates a new empty game.
func (s *GameService) CreateGame(ctx context.Context) (*domain.Game, error) {
	game, err := s.store.CreateGame(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}

	s.publishEvent(domain.GameEvent{
		EventType: domain.EventGameCreated,
		GameID:    game.ID,
		Timestamp: game.CreatedAt,
	})

	return game, nil
}

// GetGame returns a game by ID. A malformed ID cannot reference a game, so it
// reports not-found without touching storage.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	if _, err := uuid.Parse(gameID); err != nil {
		return nil, domain.ErrGameNotFound
	}
	return s.store.GetGame(ctx, gameID)
}

// RecordRoll validates and records one roll against a game.
func (s *GameService) RecordRoll(ctx context.Context, gameID string, req domain.RollRequest) (*domain.Roll, error) {
	if err := domain.ValidateDice(req.DieA, req.DieB); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(gameID); err != nil {
		return nil, domain.ErrGameNotFound
	}

	roll, err := s.store.RecordRoll(ctx, gameID, req.DieA, req.DieB, req.ClientRollID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(domain.GameEvent{
		EventType: domain.EventRollRecorded,
		GameID:    gameID,
		RollIndex: roll.Index,
		Sum:       roll.Sum,
		Timestamp: roll.CreatedAt,
	})

	return roll, nil
}

// FinishGame completes a game. The optional player name is validated and
// normalized before any storage is touched; a nil name leaves the stored name
// untouched. On success the completed game is pushed to the realtime cache,
// broadcast to websocket clients, and published to the event stream, all
// best-effort.
func (s *GameService) FinishGame(ctx context.Context, gameID string, req domain.FinishRequest) (*domain.Game, error) {
	var playerName *string
	if req.PlayerName != nil {
		normalized, err := domain.NormalizePlayerName(*req.PlayerName)
		if err != nil {
			return nil, err
		}
		playerName = &normalized
	}
	if _, err := uuid.Parse(gameID); err != nil {
		return nil, domain.ErrGameNotFound
	}

	game, err := s.store.FinishGame(ctx, gameID, playerName)
	if err != nil {
		return nil, err
	}

	name := ""
	if game.PlayerName != nil {
		name = *game.PlayerName
	}

	if s.cache != nil {
		if err := s.cache.AddEntry(ctx, game.ID, name, int64(game.TotalScore)); err != nil {
			s.logger.Warn("failed to cache completed game", "game_id", game.ID, "error", err)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastLeaderboardUpdate(domain.LeaderboardEntry{
			GameID:     game.ID,
			PlayerName: name,
			Score:      int64(game.TotalScore),
		})
	}

	s.publishEvent(domain.GameEvent{
		EventType:  domain.EventGameFinished,
		GameID:     game.ID,
		TotalScore: game.TotalScore,
		PlayerName: name,
		Timestamp:  *game.CompletedAt,
	})

	return game, nil
}

// Leaderboard returns one page of completed games ranked by score, ties
// broken by most recent creation. Limit is clamped to the configured bounds
// and page to >= 1.
func (s *GameService) Leaderboard(ctx context.Context, limit, page int) (*domain.LeaderboardPage, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	if page < 1 {
		page = 1
	}

	games, total, err := s.store.ListCompleted(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboard: %w", err)
	}
	if games == nil {
		games = []domain.Game{}
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &domain.LeaderboardPage{
		Games: games,
		Pagination: domain.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Top returns the top n completed games, served from the realtime cache when
// available and from storage otherwise.
func (s *GameService) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}

	if s.cache != nil {
		entries, err := s.cache.TopN(ctx, n)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("leaderboard cache unavailable, falling back to storage", "error", err)
	}

	games, err := s.store.TopCompleted(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("listing top games: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(games))
	for i, game := range games {
		name := ""
		if game.PlayerName != nil {
			name = *game.PlayerName
		}
		entries[i] = domain.LeaderboardEntry{
			Rank:       int64(i + 1),
			GameID:     game.ID,
			PlayerName: name,
			Score:      int64(game.TotalScore),
		}
	}
	return entries, nil
}

// Stats aggregates completed games and their rolls.
func (s *GameService) Stats(ctx context.Context) (*domain.Stats, error) {
	totalScore, totalGames, err := s.store.GameAggregates(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregating games: %w", err)
	}

	stats := &domain.Stats{
		TotalScoreAllTime: totalScore,
		TotalGames:        totalGames,
	}
	if totalGames > 0 {
		stats.AverageScorePerGame = float64(totalScore) / float64(totalGames)
	}

	sumCounts, err := s.store.SumCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sum distribution: %w", err)
	}
	for sum, count := range sumCounts {
		if sum >= 2 && sum <= 12 {
			stats.SumDistribution[sum] = count
		}
	}

	pairCounts, err := s.store.PairCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pair distribution: %w", err)
	}
	for pair, count := range pairCounts {
		if pair.DieA >= 1 && pair.DieA <= 6 && pair.DieB >= 1 && pair.DieB <= 6 {
			stats.PairDistribution[pair.DieA-1][pair.DieB-1] = count
		}
	}

	return stats, nil
}

// publishEvent emits a lifecycle event, logging failures instead of failing
// the request.
func (s *GameService) publishEvent(event domain.GameEvent) {
	if s.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("failed to publish game event",
			"event_type", event.EventType,
			"game_id", event.GameID,
			"error", err,
		)
	}
}
