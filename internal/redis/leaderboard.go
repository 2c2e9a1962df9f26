package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/domain"
)

const topKey = "leaderboard:top"

// LeaderboardCache keeps a realtime sorted-set view of completed games in
// Redis. Scores alone rank the cache, so the paginated Postgres endpoint
// stays authoritative for tie-breaks; the cache serves the cheap top-N reads
// and the websocket fanout.
type LeaderboardCache struct {
	client  *redis.Client
	maxSize int
	logger  *slog.Logger
}

// NewLeaderboardCache connects to Redis and returns the cache.
func NewLeaderboardCache(cfg *config.RedisConfig, maxSize int, logger *slog.Logger) (*LeaderboardCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &LeaderboardCache{
		client:  client,
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

// Close closes the Redis connection
func (c *LeaderboardCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *LeaderboardCache) Client() *redis.Client {
	return c.client
}

// infoKey returns the Redis key for a game's cached display fields
func (c *LeaderboardCache) infoKey(gameID string) string {
	return fmt.Sprintf("game:%s:info", gameID)
}

// AddEntry records a completed game in the cache and trims the sorted set to
// the configured size.
func (c *LeaderboardCache) AddEntry(ctx context.Context, gameID, playerName string, score int64) error {
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, topKey, redis.Z{Score: float64(score), Member: gameID})
	pipe.HSet(ctx, c.infoKey(gameID), "player_name", playerName, "score", score)
	if c.maxSize > 0 {
		pipe.ZRemRangeByRank(ctx, topKey, 0, int64(-(c.maxSize + 1)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("caching leaderboard entry: %w", err)
	}
	return nil
}

// TopN returns the n highest-scoring cached games.
func (c *LeaderboardCache) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, topKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		gameID := result.Member.(string)
		entries[i] = domain.LeaderboardEntry{
			Rank:   int64(i + 1),
			GameID: gameID,
			Score:  int64(result.Score),
		}

		name, err := c.client.HGet(ctx, c.infoKey(gameID), "player_name").Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("getting game info: %w", err)
		}
		entries[i].PlayerName = name
	}
	return entries, nil
}

// Rebuild replaces the cache contents with the given games in one pipeline.
// Used by the refresh worker after restarts and on its interval.
func (c *LeaderboardCache) Rebuild(ctx context.Context, games []domain.Game) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, topKey)
	for _, game := range games {
		pipe.ZAdd(ctx, topKey, redis.Z{Score: float64(game.TotalScore), Member: game.ID})
		name := ""
		if game.PlayerName != nil {
			name = *game.PlayerName
		}
		pipe.HSet(ctx, c.infoKey(game.ID), "player_name", name, "score", game.TotalScore)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding leaderboard cache: %w", err)
	}

	c.logger.Debug("leaderboard cache rebuilt", "entries", len(games))
	return nil
}

// Count returns the number of cached entries.
func (c *LeaderboardCache) Count(ctx context.Context) (int64, error) {
	count, err := c.client.ZCard(ctx, topKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return count, nil
}
