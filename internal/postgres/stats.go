package postgres

import (
	"context"
	"fmt"

	"github.com/tenroll/internal/domain"
)

// GameAggregates returns the summed score and count over completed games.
func (r *Repository) GameAggregates(ctx context.Context) (totalScore, totalGames int64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_score), 0), COUNT(*)
		FROM games
		WHERE completed_at IS NOT NULL`,
	).Scan(&totalScore, &totalGames)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregating games: %w", err)
	}
	return totalScore, totalGames, nil
}

// SumCounts returns roll counts grouped by sum, over rolls belonging to
// completed games only.
func (r *Repository) SumCounts(ctx context.Context) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.sum, COUNT(*)
		FROM rolls r
		JOIN games g ON g.id = r.game_id
		WHERE g.completed_at IS NOT NULL
		GROUP BY r.sum`,
	)
	if err != nil {
		return nil, fmt.Errorf("grouping roll sums: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sum int
		var count int64
		if err := rows.Scan(&sum, &count); err != nil {
			return nil, fmt.Errorf("scanning sum count: %w", err)
		}
		counts[sum] = count
	}
	return counts, rows.Err()
}

// PairCounts returns roll counts grouped by the ordered (dieA, dieB) pair,
// over rolls belonging to completed games only.
func (r *Repository) PairCounts(ctx context.Context) (map[domain.DicePair]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.die_a, r.die_b, COUNT(*)
		FROM rolls r
		JOIN games g ON g.id = r.game_id
		WHERE g.completed_at IS NOT NULL
		GROUP BY r.die_a, r.die_b`,
	)
	if err != nil {
		return nil, fmt.Errorf("grouping dice pairs: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.DicePair]int64)
	for rows.Next() {
		var pair domain.DicePair
		var count int64
		if err := rows.Scan(&pair.DieA, &pair.DieB, &count); err != nil {
			return nil, fmt.Errorf("scanning pair count: %w", err)
		}
		counts[pair] = count
	}
	return counts, rows.Err()
}
