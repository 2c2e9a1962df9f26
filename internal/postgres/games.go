package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tenroll/internal/domain"
)

const gameColumns = `id, player_name, total_score, roll_count, created_at, completed_at`

func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	err := row.Scan(
		&g.ID,
		&g.PlayerName,
		&g.TotalScore,
		&g.RollCount,
		&g.CreatedAt,
		&g.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("scanning game: %w", err)
	}
	return &g, nil
}

// CreateGame inserts an empty in-progress game and returns it.
func (r *Repository) CreateGame(ctx context.Context) (*domain.Game, error) {
	query := `
		INSERT INTO games (id, total_score, roll_count, created_at)
		VALUES ($1, 0, 0, $2)
		RETURNING ` + gameColumns
	return scanGame(r.pool.QueryRow(ctx, query, uuid.NewString(), time.Now()))
}

// GetGame retrieves a game by ID.
func (r *Repository) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	return scanGame(r.pool.QueryRow(ctx, query, gameID))
}

// RecordRoll appends one roll to a game. The game row is locked for the
// duration of the transaction so concurrent calls serialize: the roll's index
// is the locked row's roll_count, and the counter increments commit together
// with the roll insert or not at all. A duplicate clientRollID for a roll
// that already committed returns the original roll unchanged.
func (r *Repository) RecordRoll(ctx context.Context, gameID string, dieA, dieB int, clientRollID string) (*domain.Roll, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	game, err := scanGame(tx.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, gameID))
	if err != nil {
		return nil, err
	}

	if clientRollID != "" {
		existing, err := r.findByClientRollID(ctx, tx, gameID, clientRollID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if game.Completed() {
		return nil, domain.ErrAlreadyCompleted
	}
	if game.RollCount >= domain.MaxRolls {
		return nil, domain.ErrMaxRollsReached
	}

	roll := &domain.Roll{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Index:     game.RollCount,
		DieA:      dieA,
		DieB:      dieB,
		Sum:       dieA + dieB,
		CreatedAt: time.Now(),
	}

	var cid *string
	if clientRollID != "" {
		cid = &clientRollID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO rolls (id, game_id, roll_index, die_a, die_b, sum, client_roll_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		roll.ID, roll.GameID, roll.Index, roll.DieA, roll.DieB, roll.Sum, cid, roll.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting roll: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE games SET roll_count = roll_count + 1, total_score = total_score + $2
		WHERE id = $1`,
		gameID, roll.Sum,
	)
	if err != nil {
		return nil, fmt.Errorf("incrementing game counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing roll: %w", err)
	}
	return roll, nil
}

func (r *Repository) findByClientRollID(ctx context.Context, tx pgx.Tx, gameID, clientRollID string) (*domain.Roll, error) {
	var roll domain.Roll
	err := tx.QueryRow(ctx, `
		SELECT id, game_id, roll_index, die_a, die_b, sum, created_at
		FROM rolls WHERE game_id = $1 AND client_roll_id = $2`,
		gameID, clientRollID,
	).Scan(&roll.ID, &roll.GameID, &roll.Index, &roll.DieA, &roll.DieB, &roll.Sum, &roll.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up client roll id: %w", err)
	}
	return &roll, nil
}

// FinishGame marks a game completed. Completion requires exactly MaxRolls
// recorded rolls and happens once; the counters are frozen from then on.
// When playerName is non-nil it replaces the stored name.
func (r *Repository) FinishGame(ctx context.Context, gameID string, playerName *string) (*domain.Game, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	game, err := scanGame(tx.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, gameID))
	if err != nil {
		return nil, err
	}

	if game.Completed() {
		return nil, domain.ErrAlreadyCompleted
	}
	if game.RollCount < domain.MaxRolls {
		return nil, domain.ErrGameIncomplete
	}

	updated, err := scanGame(tx.QueryRow(ctx, `
		UPDATE games SET completed_at = $2, player_name = COALESCE($3, player_name)
		WHERE id = $1
		RETURNING `+gameColumns,
		gameID, time.Now(), playerName,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing finish: %w", err)
	}
	return updated, nil
}

// ListCompleted returns one leaderboard page of completed games ordered by
// total score, most recent creation first among ties, plus the total count
// of completed games.
func (r *Repository) ListCompleted(ctx context.Context, limit, offset int) ([]domain.Game, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM games WHERE completed_at IS NOT NULL`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting completed games: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE completed_at IS NOT NULL
		ORDER BY total_score DESC, created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing completed games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		err := rows.Scan(&g.ID, &g.PlayerName, &g.TotalScore, &g.RollCount, &g.CreatedAt, &g.CompletedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}
	return games, total, rows.Err()
}

// TopCompleted returns up to limit completed games for the realtime cache.
func (r *Repository) TopCompleted(ctx context.Context, limit int) ([]domain.Game, error) {
	games, _, err := r.ListCompleted(ctx, limit, 0)
	return games, err
}

// InsertCompletedGame inserts a finished game together with its rolls in one
// transaction. Used by the seeder; the rolls must already satisfy the
// game's counters.
func (r *Repository) InsertCompletedGame(ctx context.Context, game *domain.Game, rolls []domain.Roll) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO games (id, player_name, total_score, roll_count, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		game.ID, game.PlayerName, game.TotalScore, game.RollCount, game.CreatedAt, game.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}

	for _, roll := range rolls {
		_, err = tx.Exec(ctx, `
			INSERT INTO rolls (id, game_id, roll_index, die_a, die_b, sum, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			roll.ID, roll.GameID, roll.Index, roll.DieA, roll.DieB, roll.Sum, roll.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting roll: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed game: %w", err)
	}
	return nil
}

// WipeAll deletes every roll and game. Operator tooling only.
func (r *Repository) WipeAll(ctx context.Context) (rolls int64, games int64, err error) {
	rollsTag, err := r.pool.Exec(ctx, `DELETE FROM rolls`)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting rolls: %w", err)
	}
	gamesTag, err := r.pool.Exec(ctx, `DELETE FROM games`)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting games: %w", err)
	}
	return rollsTag.RowsAffected(), gamesTag.RowsAffected(), nil
}
