// Package memstore provides an in-memory implementation of the game store
// with the same transactional semantics as the PostgreSQL repository: every
// lifecycle mutation runs under one lock, so concurrent rolls against a game
// serialize exactly as they do under the database row lock. It backs tests
// and local development without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenroll/internal/domain"
)

// Store is an in-memory game store.
type Store struct {
	mu       sync.Mutex
	games    map[string]*domain.Game
	rolls    map[string][]domain.Roll
	byClient map[clientKey]domain.Roll
}

type clientKey struct {
	gameID       string
	clientRollID string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		games:    make(map[string]*domain.Game),
		rolls:    make(map[string][]domain.Roll),
		byClient: make(map[clientKey]domain.Roll),
	}
}

// CreateGame allocates a new empty game.
func (s *Store) CreateGame(ctx context.Context) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game := &domain.Game{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	s.games[game.ID] = game
	copied := *game
	return &copied, nil
}

// GetGame retrieves a game by ID.
func (s *Store) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	copied := *game
	return &copied, nil
}

// RecordRoll appends one roll to a game under the store lock.
func (s *Store) RecordRoll(ctx context.Context, gameID string, dieA, dieB int, clientRollID string) (*domain.Roll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}

	if clientRollID != "" {
		if existing, ok := s.byClient[clientKey{gameID, clientRollID}]; ok {
			copied := existing
			return &copied, nil
		}
	}

	if game.Completed() {
		return nil, domain.ErrAlreadyCompleted
	}
	if game.RollCount >= domain.MaxRolls {
		return nil, domain.ErrMaxRollsReached
	}

	roll := domain.Roll{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Index:     game.RollCount,
		DieA:      dieA,
		DieB:      dieB,
		Sum:       dieA + dieB,
		CreatedAt: time.Now(),
	}

	s.rolls[gameID] = append(s.rolls[gameID], roll)
	game.RollCount++
	game.TotalScore += roll.Sum
	if clientRollID != "" {
		s.byClient[clientKey{gameID, clientRollID}] = roll
	}

	copied := roll
	return &copied, nil
}

// FinishGame marks a game completed. Requires exactly MaxRolls rolls and
// fails on a second completion.
func (s *Store) FinishGame(ctx context.Context, gameID string, playerName *string) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	if game.Completed() {
		return nil, domain.ErrAlreadyCompleted
	}
	if game.RollCount < domain.MaxRolls {
		return nil, domain.ErrGameIncomplete
	}

	now := time.Now()
	game.CompletedAt = &now
	if playerName != nil {
		name := *playerName
		game.PlayerName = &name
	}

	copied := *game
	return &copied, nil
}

// completedLocked returns completed games ordered by score descending, ties
// broken by most recent creation.
func (s *Store) completedLocked() []domain.Game {
	var completed []domain.Game
	for _, game := range s.games {
		if game.Completed() {
			completed = append(completed, *game)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		if completed[i].TotalScore != completed[j].TotalScore {
			return completed[i].TotalScore > completed[j].TotalScore
		}
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})
	return completed
}

// ListCompleted returns one page of completed games plus the total count.
func (s *Store) ListCompleted(ctx context.Context, limit, offset int) ([]domain.Game, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := s.completedLocked()
	total := int64(len(completed))

	if offset >= len(completed) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(completed) {
		end = len(completed)
	}
	page := make([]domain.Game, end-offset)
	copy(page, completed[offset:end])
	return page, total, nil
}

// TopCompleted returns up to limit completed games.
func (s *Store) TopCompleted(ctx context.Context, limit int) ([]domain.Game, error) {
	games, _, err := s.ListCompleted(ctx, limit, 0)
	return games, err
}

// GameAggregates returns the summed score and count over completed games.
func (s *Store) GameAggregates(ctx context.Context) (totalScore, totalGames int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, game := range s.games {
		if game.Completed() {
			totalScore += int64(game.TotalScore)
			totalGames++
		}
	}
	return totalScore, totalGames, nil
}

// SumCounts returns roll counts grouped by sum over completed games.
func (s *Store) SumCounts(ctx context.Context) (map[int]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int]int64)
	for gameID, rolls := range s.rolls {
		if !s.games[gameID].Completed() {
			continue
		}
		for _, roll := range rolls {
			counts[roll.Sum]++
		}
	}
	return counts, nil
}

// PairCounts returns roll counts grouped by ordered dice pair over completed
// games.
func (s *Store) PairCounts(ctx context.Context) (map[domain.DicePair]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.DicePair]int64)
	for gameID, rolls := range s.rolls {
		if !s.games[gameID].Completed() {
			continue
		}
		for _, roll := range rolls {
			counts[domain.DicePair{DieA: roll.DieA, DieB: roll.DieB}]++
		}
	}
	return counts, nil
}

// Rolls returns a copy of a game's rolls in index order. Test helper.
func (s *Store) Rolls(gameID string) []domain.Roll {
	s.mu.Lock()
	defer s.mu.Unlock()

	rolls := make([]domain.Roll, len(s.rolls[gameID]))
	copy(rolls, s.rolls[gameID])
	return rolls
}
