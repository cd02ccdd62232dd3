package proxy

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestConfigHolder_SnapshotRefcounting(t *testing.T) {
	t.Parallel()

	var teardowns atomic.Int64
	cfg := &Config{LoadedAt: time.Now(), OnTeardown: func() { teardowns.Add(1) }}
	holder := NewConfigHolder(cfg)

	s1 := holder.Snapshot()
	s2 := holder.Snapshot()
	if s1.Config() != cfg || s2.Config() != cfg {
		t.Fatal("snapshots do not reference the held config")
	}

	s1.Release()
	if teardowns.Load() != 0 {
		t.Fatal("teardown ran while references remained")
	}

	// Displace the config; the holder's own reference moves to the caller.
	old := holder.Swap(&Config{LoadedAt: time.Now()})
	old.Release()
	if teardowns.Load() != 0 {
		t.Fatal("teardown ran while a snapshot was still live")
	}

	s2.Release()
	if teardowns.Load() != 1 {
		t.Fatalf("teardown count = %d, want 1", teardowns.Load())
	}
}

func TestConfigHolder_SwapSameConfigKeepsPointer(t *testing.T) {
	t.Parallel()

	cfg := &Config{LoadedAt: time.Now()}
	holder := NewConfigHolder(cfg)

	before := holder.Unsafe()
	old := holder.Swap(cfg)
	after := holder.Unsafe()

	if before != cfg || after != cfg {
		t.Fatal("swap with the same config changed the observed pointer")
	}
	// The displaced handle stays valid for the life of its holder.
	if old.Config() != cfg {
		t.Fatal("displaced handle lost its snapshot")
	}
	old.Release()
}

func TestConfigHolder_LockedHoldsReadLock(t *testing.T) {
	t.Parallel()

	cfg := &Config{LoadedAt: time.Now()}
	holder := NewConfigHolder(cfg)

	got, unlock := holder.Locked()
	if got != cfg {
		t.Fatal("Locked returned the wrong snapshot")
	}

	swapped := make(chan struct{})
	go func() {
		old := holder.Swap(&Config{LoadedAt: time.Now()})
		old.Release()
		close(swapped)
	}()

	select {
	case <-swapped:
		t.Fatal("swap completed while the read lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-swapped:
	case <-time.After(time.Second):
		t.Fatal("swap never completed after unlock")
	}
}
