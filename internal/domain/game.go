package domain

import (
	"time"
)

// MaxRolls is the number of rolls that make up a complete game.
const MaxRolls = 10

// Game represents one play-through: up to MaxRolls dice rolls, a running
// score, an optional player name, and a completion timestamp. A game with a
// non-nil CompletedAt is terminal and read-only.
type Game struct {
	ID          string     `json:"id"`
	PlayerName  *string    `json:"player_name"`
	TotalScore  int        `json:"total_score"`
	RollCount   int        `json:"roll_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Completed reports whether the game is terminal.
func (g *Game) Completed() bool {
	return g.CompletedAt != nil
}

// Roll represents one throw of two dice within a game. Index is the game's
// roll count at the moment the roll was recorded, so indices within a game
// form the contiguous range 0..RollCount-1.
type Roll struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Index     int       `json:"index"`
	DieA      int       `json:"die_a"`
	DieB      int       `json:"die_b"`
	Sum       int       `json:"sum"`
	CreatedAt time.Time `json:"created_at"`
}

// RollRequest is the body of a roll submission. ClientRollID is an optional
// client-generated token; resubmitting the same token for a roll that already
// committed returns the original roll instead of recording a duplicate.
type RollRequest struct {
	DieA         int    `json:"die_a"`
	DieB         int    `json:"die_b"`
	ClientRollID string `json:"client_roll_id,omitempty"`
}

// ValidateDice checks that both dice are within [1,6].
func ValidateDice(dieA, dieB int) error {
	if dieA < 1 || dieA > 6 || dieB < 1 || dieB > 6 {
		return ErrInvalidDice
	}
	return nil
}

// FinishRequest is the body of a finish submission.
type FinishRequest struct {
	PlayerName *string `json:"player_name,omitempty"`
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// LeaderboardPage is one page of completed games ordered by score.
type LeaderboardPage struct {
	Games      []Game     `json:"games"`
	Pagination Pagination `json:"pagination"`
}

// LeaderboardEntry is a cached realtime ranking entry.
type LeaderboardEntry struct {
	Rank       int64  `json:"rank"`
	GameID     string `json:"game_id"`
	PlayerName string `json:"player_name,omitempty"`
	Score      int64  `json:"score"`
}

// DicePair is an ordered (dieA, dieB) combination; (2,5) and (5,2) are
// distinct pairs.
type DicePair struct {
	DieA int
	DieB int
}

// Stats aggregates completed games. SumDistribution is indexed by roll sum
// (cells 0 and 1 stay zero); PairDistribution[a-1][b-1] counts ordered
// (dieA, dieB) pairs.
type Stats struct {
	TotalScoreAllTime   int64       `json:"total_score_all_time"`
	TotalGames          int64       `json:"total_games"`
	AverageScorePerGame float64     `json:"average_score_per_game"`
	SumDistribution     [13]int64   `json:"sum_distribution"`
	PairDistribution    [6][6]int64 `json:"pair_distribution"`
}

// GameEvent is the message published to the event stream on lifecycle
// transitions.
type GameEvent struct {
	EventType  string    `json:"event_type"`
	GameID     string    `json:"game_id"`
	RollIndex  int       `json:"roll_index,omitempty"`
	Sum        int       `json:"sum,omitempty"`
	TotalScore int       `json:"total_score,omitempty"`
	PlayerName string    `json:"player_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event types carried by GameEvent.
const (
	EventGameCreated  = "game_created"
	EventRollRecorded = "roll_recorded"
	EventGameFinished = "game_finished"
)
