package core

import (
	"context"
	"errors"
	"testing"
)

func TestAllocateNext_EmptyStoreCountsFromOne(t *testing.T) {
	allocator := NewSequenceAllocator(newTestDatabase(t))
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got := allocator.AllocateNext(ctx)
		if got.ID != want {
			t.Fatalf("allocation %d: expected id %d, got %d", want, want, got.ID)
		}
		wantOutcome := AllocationClean
		if want == 1 {
			wantOutcome = AllocationInitialized
		}
		if got.Outcome != wantOutcome {
			t.Fatalf("allocation %d: expected outcome %s, got %s", want, wantOutcome, got.Outcome)
		}
	}
}

func TestAllocateNext_PersistsCounter(t *testing.T) {
	ds := newTestDatabase(t)
	allocator := NewSequenceAllocator(ds)
	ctx := context.Background()

	allocator.AllocateNext(ctx)
	allocator.AllocateNext(ctx)

	next, err := ds.GetCounter(ctx)
	if err != nil {
		t.Fatalf("GetCounter error: %v", err)
	}
	if next != 3 {
		t.Fatalf("expected persisted next_id 3, got %d", next)
	}
}

func TestBumpToAtLeast_AdvancesLowCounter(t *testing.T) {
	ds := newTestDatabase(t)
	allocator := NewSequenceAllocator(ds)
	ctx := context.Background()

	if err := ds.CreateCounter(ctx, 3); err != nil {
		t.Fatalf("CreateCounter error: %v", err)
	}
	if got := allocator.BumpToAtLeast(ctx, 5); got != BumpAdvanced {
		t.Fatalf("expected BumpAdvanced, got %s", got)
	}
	if got := allocator.AllocateNext(ctx); got.ID < 5 {
		t.Fatalf("expected next allocation >= 5, got %d", got.ID)
	}
}

func TestBumpToAtLeast_NoopOnHighCounter(t *testing.T) {
	ds := newTestDatabase(t)
	allocator := NewSequenceAllocator(ds)
	ctx := context.Background()

	if err := ds.CreateCounter(ctx, 10); err != nil {
		t.Fatalf("CreateCounter error: %v", err)
	}
	if got := allocator.BumpToAtLeast(ctx, 5); got != BumpNoop {
		t.Fatalf("expected BumpNoop, got %s", got)
	}
	if got := allocator.AllocateNext(ctx); got.ID != 10 {
		t.Fatalf("expected next allocation 10, got %d", got.ID)
	}
}

func TestBumpToAtLeast_CreatesMissingCounter(t *testing.T) {
	ds := newTestDatabase(t)
	allocator := NewSequenceAllocator(ds)
	ctx := context.Background()

	if got := allocator.BumpToAtLeast(ctx, 14); got != BumpCreated {
		t.Fatalf("expected BumpCreated, got %s", got)
	}
	next, err := ds.GetCounter(ctx)
	if err != nil {
		t.Fatalf("GetCounter error: %v", err)
	}
	if next != 14 {
		t.Fatalf("expected next_id 14, got %d", next)
	}
}

func TestBumpToAtLeast_SwallowsFailures(t *testing.T) {
	faulty := &faultyDatabase{DatabaseService: newTestDatabase(t), getCounterErr: errors.New("connection reset")}
	allocator := NewSequenceAllocator(faulty)

	if got := allocator.BumpToAtLeast(context.Background(), 3); got != BumpFailed {
		t.Fatalf("expected BumpFailed, got %s", got)
	}
}

func TestAllocateNext_ReadFailureReinitializes(t *testing.T) {
	faulty := &faultyDatabase{DatabaseService: newTestDatabase(t), getCounterErr: errors.New("timeout")}
	allocator := NewSequenceAllocator(faulty)

	got := allocator.AllocateNext(context.Background())
	if got.ID != 1 || got.Outcome != AllocationInitialized {
		t.Fatalf("expected {1 initialized}, got {%d %s}", got.ID, got.Outcome)
	}
	if got.Degraded() {
		t.Fatalf("initialized allocation must not be degraded")
	}
}

func TestAllocateNext_FallbackWhenCounterCannotBeCreated(t *testing.T) {
	faulty := &faultyDatabase{
		DatabaseService:  newTestDatabase(t),
		getCounterErr:    errors.New("timeout"),
		createCounterErr: errors.New("timeout"),
	}
	allocator := NewSequenceAllocator(faulty)

	got := allocator.AllocateNext(context.Background())
	if got.ID != 1 || got.Outcome != AllocationFallback {
		t.Fatalf("expected {1 fallback}, got {%d %s}", got.ID, got.Outcome)
	}
	if !got.Degraded() {
		t.Fatalf("fallback allocation must be degraded")
	}
}

func TestAllocateNext_MalformedCounterFallsBack(t *testing.T) {
	ds := newTestDatabase(t)
	ctx := context.Background()
	if err := ds.CreateCounter(ctx, 0); err != nil {
		t.Fatalf("CreateCounter error: %v", err)
	}

	got := NewSequenceAllocator(ds).AllocateNext(ctx)
	if got.ID != 1 || got.Outcome != AllocationFallback {
		t.Fatalf("expected {1 fallback} for malformed counter, got {%d %s}", got.ID, got.Outcome)
	}
}

func TestAllocateNext_StaleWhenAdvanceFails(t *testing.T) {
	ds := newTestDatabase(t)
	ctx := context.Background()
	if err := ds.CreateCounter(ctx, 6); err != nil {
		t.Fatalf("CreateCounter error: %v", err)
	}
	faulty := &faultyDatabase{DatabaseService: ds, updateCounterErr: errors.New("read-only")}

	got := NewSequenceAllocator(faulty).AllocateNext(ctx)
	if got.ID != 6 || got.Outcome != AllocationStale {
		t.Fatalf("expected {6 stale}, got {%d %s}", got.ID, got.Outcome)
	}
}
