package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/tenroll/internal/domain"
)

func TestConcurrentRollsSerialize(t *testing.T) {
	store := New()
	ctx := context.Background()

	game, err := store.CreateGame(ctx)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	// Fire far more concurrent rolls than a game accepts. Exactly MaxRolls
	// must commit; the rest must fail with the cap error.
	const attempts = 50
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RecordRoll(ctx, game.ID, 3, 4, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var committed, rejected int
	for err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, domain.ErrMaxRollsReached):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if committed != domain.MaxRolls {
		t.Errorf("%d rolls committed, want %d", committed, domain.MaxRolls)
	}
	if rejected != attempts-domain.MaxRolls {
		t.Errorf("%d rolls rejected, want %d", rejected, attempts-domain.MaxRolls)
	}

	// Counters match the rows and indices are the exact contiguous range.
	current, err := store.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	rolls := store.Rolls(game.ID)
	if current.RollCount != len(rolls) {
		t.Errorf("RollCount %d != %d roll rows", current.RollCount, len(rolls))
	}
	total := 0
	indices := make([]int, 0, len(rolls))
	for _, roll := range rolls {
		total += roll.Sum
		indices = append(indices, roll.Index)
	}
	if total != current.TotalScore {
		t.Errorf("TotalScore %d != sum of rolls %d", current.TotalScore, total)
	}
	sort.Ints(indices)
	for i, index := range indices {
		if index != i {
			t.Fatalf("indices %v are not the contiguous range 0..%d", indices, domain.MaxRolls-1)
		}
	}
}

func TestConcurrentFinishOnce(t *testing.T) {
	store := New()
	ctx := context.Background()

	game, err := store.CreateGame(ctx)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	for i := 0; i < domain.MaxRolls; i++ {
		if _, err := store.RecordRoll(ctx, game.ID, 2, 3, ""); err != nil {
			t.Fatalf("RecordRoll: %v", err)
		}
	}

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.FinishGame(ctx, game.ID, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrAlreadyCompleted):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d finishes succeeded, want exactly 1", succeeded)
	}
}
