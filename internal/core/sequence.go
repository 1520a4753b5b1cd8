package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/issuereport/internal/backend/database"
)

// AllocationOutcome tells callers how an id was obtained.
type AllocationOutcome int

const (
	// AllocationClean read the counter and persisted its advance.
	AllocationClean AllocationOutcome = iota
	// AllocationInitialized created a missing or unreadable counter and handed out 1.
	AllocationInitialized
	// AllocationStale read the counter but could not persist the advance.
	AllocationStale
	// AllocationFallback could neither read nor create the counter and assumed 1.
	// Concurrent first-time callers can all land here; only the insert
	// conflict check keeps their reports apart.
	AllocationFallback
)

func (o AllocationOutcome) String() string {
	switch o {
	case AllocationClean:
		return "clean"
	case AllocationInitialized:
		return "initialized"
	case AllocationStale:
		return "stale"
	case AllocationFallback:
		return "fallback"
	default:
		return fmt.Sprintf("AllocationOutcome(%d)", int(o))
	}
}

type Allocation struct {
	ID      int64
	Outcome AllocationOutcome
}

// Degraded reports whether the id may collide with an existing report.
func (a Allocation) Degraded() bool {
	return a.Outcome == AllocationStale || a.Outcome == AllocationFallback
}

type BumpOutcome int

const (
	BumpNoop BumpOutcome = iota
	BumpAdvanced
	BumpCreated
	BumpFailed
)

func (o BumpOutcome) String() string {
	switch o {
	case BumpNoop:
		return "noop"
	case BumpAdvanced:
		return "advanced"
	case BumpCreated:
		return "created"
	case BumpFailed:
		return "failed"
	default:
		return fmt.Sprintf("BumpOutcome(%d)", int(o))
	}
}

// SequenceAllocator hands out report ids from the persisted counter record.
//
// It is a plain read-modify-write and not safe against concurrent callers:
// the counter is a hint, the report table's primary key is the source of
// truth, and ReportWriter reconciles the two after an insert conflict.
type SequenceAllocator struct {
	databaseService database.DatabaseService
}

func NewSequenceAllocator(databaseService database.DatabaseService) *SequenceAllocator {
	return &SequenceAllocator{databaseService: databaseService}
}

// AllocateNext returns the next id and advances the counter. It never fails;
// problems are reported through the outcome.
func (a *SequenceAllocator) AllocateNext(ctx context.Context) Allocation {
	nextID, err := a.databaseService.GetCounter(ctx)
	if err == nil && nextID < 1 {
		err = fmt.Errorf("malformed counter value %d", nextID)
	}
	if err != nil {
		if !errors.Is(err, database.ErrCounterNotFound) {
			slog.Warn("report counter unreadable, re-initializing", "error", err)
		}
		return a.initialize(ctx)
	}

	if err := a.databaseService.UpdateCounter(ctx, nextID+1); err != nil {
		slog.Warn("failed to persist report counter advance", "id", nextID, "error", err)
		return Allocation{ID: nextID, Outcome: AllocationStale}
	}
	return Allocation{ID: nextID, Outcome: AllocationClean}
}

// initialize records "1 allocated, 2 next".
func (a *SequenceAllocator) initialize(ctx context.Context) Allocation {
	if err := a.databaseService.CreateCounter(ctx, 2); err != nil {
		slog.Warn("failed to initialize report counter, falling back to id 1", "error", err)
		return Allocation{ID: 1, Outcome: AllocationFallback}
	}
	return Allocation{ID: 1, Outcome: AllocationInitialized}
}

// BumpToAtLeast makes sure the counter's next id is at least minimum.
// Failures are swallowed; the caller retries whatever depended on it.
func (a *SequenceAllocator) BumpToAtLeast(ctx context.Context, minimum int64) BumpOutcome {
	current, err := a.databaseService.GetCounter(ctx)
	if errors.Is(err, database.ErrCounterNotFound) {
		if err := a.databaseService.CreateCounter(ctx, minimum); err != nil {
			slog.Warn("failed to create report counter during bump", "minimum", minimum, "error", err)
			return BumpFailed
		}
		return BumpCreated
	}
	if err != nil {
		slog.Warn("failed to read report counter during bump", "minimum", minimum, "error", err)
		return BumpFailed
	}

	if current >= minimum {
		return BumpNoop
	}
	if err := a.databaseService.UpdateCounter(ctx, minimum); err != nil {
		slog.Warn("failed to bump report counter", "from", current, "to", minimum, "error", err)
		return BumpFailed
	}
	return BumpAdvanced
}
