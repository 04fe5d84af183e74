package player

import (
	"sync"
	"testing"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	reg := NewRegistry(10, 10)
	if reg.Peek(1) != nil {
		t.Fatal("Peek should not create state")
	}

	var wg sync.WaitGroup
	states := make([]*GuildState, 20)
	for i := range states {
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i] = reg.GetOrCreate(1)
		}()
	}
	wg.Wait()

	for i, st := range states {
		if st != states[0] {
			t.Fatalf("goroutine %d got a different state", i)
		}
	}
	if reg.Len() != 1 {
		t.Errorf("registry len = %d, want 1", reg.Len())
	}
}

func TestRegistry_Reset(t *testing.T) {
	reg := NewRegistry(10, 10)
	old := reg.GetOrCreate(5)
	_, _ = old.AddTrack(Pending("q"))

	fresh := reg.Reset(5)
	if fresh == old {
		t.Fatal("Reset returned the old state")
	}
	if reg.GetOrCreate(5) != fresh {
		t.Error("registry does not hold the fresh state")
	}
	if fresh.Snapshot().QueueLength != 0 {
		t.Error("fresh state is not empty")
	}
	if old.Snapshot().QueueLength != 1 {
		t.Error("Reset should not touch the old state")
	}
}
