package player

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

func TestGuildState_AddTrackCapacity(t *testing.T) {
	st := NewGuildState(1, DefaultQueueCapacity, DefaultHistoryCapacity)

	for i := 1; i <= DefaultQueueCapacity; i++ {
		pos, err := st.AddTrack(Resolved(testTrack(fmt.Sprintf("t%d", i))))
		if err != nil {
			t.Fatalf("AddTrack #%d error: %v", i, err)
		}
		if pos != i {
			t.Errorf("AddTrack #%d position = %d", i, pos)
		}
	}

	if _, err := st.AddTrack(Resolved(testTrack("overflow"))); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if got := st.Snapshot().QueueLength; got != DefaultQueueCapacity {
		t.Errorf("queue length = %d after rejected add", got)
	}
}

func TestGuildState_ClearQueue(t *testing.T) {
	st := NewGuildState(1, 10, 10)
	_, _ = st.AddTrack(Resolved(testTrack("a")))
	cur := testTrack("playing")
	st.current = &cur
	st.history = []Track{testTrack("old")}

	st.ClearQueue()

	snap := st.Snapshot()
	if snap.QueueLength != 0 {
		t.Errorf("pending not cleared: %v", titles(snap.Pending))
	}
	if len(st.History()) != 0 {
		t.Error("history not cleared")
	}
	if snap.Current == nil || snap.Current.Title != "playing" {
		t.Error("current track should survive ClearQueue")
	}
}

func TestGuildState_RepeatCurrentIsIdempotent(t *testing.T) {
	st := NewGuildState(1, 10, 10)
	_, _ = st.AddTrack(Resolved(testTrack("next")))
	cur := testTrack("T")
	st.current = &cur
	st.SetRepeatMode(RepeatCurrent)

	for i := 0; i < 5; i++ {
		got := st.HandleRepeatTransition()
		if got == nil || got.Title != "T" {
			t.Fatalf("call %d: expected T, got %v", i, got)
		}
	}
	if got := titles(st.Snapshot().Pending); !slices.Equal(got, []string{"next"}) {
		t.Errorf("pending queue mutated: %v", got)
	}
}

func TestGuildState_RepeatCurrentWithoutTrack(t *testing.T) {
	st := NewGuildState(1, 10, 10)
	st.SetRepeatMode(RepeatCurrent)
	if got := st.HandleRepeatTransition(); got != nil {
		t.Errorf("expected nil without a current track, got %v", got)
	}
}

func TestGuildState_RepeatQueueRefill(t *testing.T) {
	st := NewGuildState(1, 10, 10)
	st.SetRepeatMode(RepeatQueue)
	st.history = []Track{testTrack("A")}
	cur := testTrack("B")
	st.current = &cur

	if got := st.HandleRepeatTransition(); got != nil {
		t.Fatalf("repeat queue should not force a track, got %v", got)
	}

	if got := titles(st.Snapshot().Pending); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("pending after refill = %v, want [A B]", got)
	}
	if len(st.History()) != 0 {
		t.Error("history should be empty after refill")
	}
}

func TestGuildState_RepeatQueueRefillFitsQueue(t *testing.T) {
	st := NewGuildState(1, 2, 5)
	if st.historyCap != 2 {
		t.Fatalf("history capacity = %d, want it clamped to 2", st.historyCap)
	}
	st.SetRepeatMode(RepeatQueue)
	st.history = []Track{testTrack("A"), testTrack("B"), testTrack("C"), testTrack("D")}

	st.HandleRepeatTransition()

	snap := st.Snapshot()
	if got := titles(snap.Pending); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("pending after refill = %v, want [A B]", got)
	}
	var rest []string
	for _, tr := range st.History() {
		rest = append(rest, tr.Title)
	}
	if !slices.Equal(rest, []string{"C", "D"}) {
		t.Errorf("history after refill = %v, want [C D]", rest)
	}

	st.mu.Lock()
	st.popLocked()
	st.popLocked()
	st.mu.Unlock()
	st.HandleRepeatTransition()
	if got := titles(st.Snapshot().Pending); !slices.Equal(got, []string{"C", "D"}) {
		t.Errorf("second refill = %v, want [C D]", got)
	}
}

func TestGuildState_RepeatQueueKeepsPending(t *testing.T) {
	st := NewGuildState(1, 10, 10)
	st.SetRepeatMode(RepeatQueue)
	_, _ = st.AddTrack(Resolved(testTrack("B")))
	cur := testTrack("A")
	st.current = &cur

	st.HandleRepeatTransition()

	if got := titles(st.Snapshot().Pending); !slices.Equal(got, []string{"B"}) {
		t.Errorf("pending = %v, want [B]", got)
	}
	hist := st.History()
	if len(hist) != 1 || hist[0].Title != "A" {
		t.Errorf("history = %v, want [A]", hist)
	}
}

func TestGuildState_HistoryEvictsOldest(t *testing.T) {
	st := NewGuildState(1, 10, 3)
	st.SetRepeatMode(RepeatQueue)
	_, _ = st.AddTrack(Resolved(testTrack("keep-pending")))

	for _, title := range []string{"1", "2", "3", "4", "5"} {
		cur := testTrack(title)
		st.current = &cur
		st.HandleRepeatTransition()
	}

	var got []string
	for _, tr := range st.History() {
		got = append(got, tr.Title)
	}
	if !slices.Equal(got, []string{"3", "4", "5"}) {
		t.Errorf("history = %v, want [3 4 5]", got)
	}
}

func TestGuildState_RepeatNone(t *testing.T) {
	st := NewGuildState(1, 10, 10)
	cur := testTrack("A")
	st.current = &cur
	if got := st.HandleRepeatTransition(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if len(st.History()) != 0 {
		t.Error("history should stay empty with repeat none")
	}
}

func TestRepeatMode_Cycle(t *testing.T) {
	st := NewGuildState(1, 10, 10)
	want := []RepeatMode{RepeatCurrent, RepeatQueue, RepeatNone, RepeatCurrent}
	for i, w := range want {
		if got := st.CycleRepeatMode(); got != w {
			t.Errorf("cycle %d = %s, want %s", i, got, w)
		}
	}
}

func TestParseRepeatMode(t *testing.T) {
	for _, m := range []RepeatMode{RepeatNone, RepeatCurrent, RepeatQueue} {
		if got := ParseRepeatMode(m.String()); got != m {
			t.Errorf("ParseRepeatMode(%q) = %s", m.String(), got)
		}
	}
	if got := ParseRepeatMode("bogus"); got != RepeatNone {
		t.Errorf("unknown mode should parse as none, got %s", got)
	}
}

func TestEntry(t *testing.T) {
	p := Pending("lofi beats")
	if !p.IsPending() || p.Query() != "lofi beats" || p.Title() != "lofi beats" {
		t.Errorf("unexpected pending entry: %+v", p)
	}
	if _, ok := p.Track(); ok {
		t.Error("pending entry should not expose a track")
	}

	pt := PendingTitled("https://youtu.be/x", "Song X")
	if !pt.IsPending() || pt.Query() != "https://youtu.be/x" || pt.Title() != "Song X" {
		t.Errorf("unexpected titled pending entry: %+v", pt)
	}

	r := Resolved(Track{Title: "Song", URL: "https://example.com/watch", StreamURL: "https://cdn/x"})
	if r.IsPending() || r.Query() != "https://example.com/watch" {
		t.Errorf("unexpected resolved entry: %+v", r)
	}
	if tr, ok := r.Track(); !ok || tr.Title != "Song" {
		t.Errorf("Track() = %v, %v", tr, ok)
	}
}

func TestParseGuildID(t *testing.T) {
	id, err := ParseGuildID("123456789012345678")
	if err != nil {
		t.Fatalf("ParseGuildID error: %v", err)
	}
	if id.String() != "123456789012345678" {
		t.Errorf("round trip = %s", id)
	}
	if _, err := ParseGuildID("abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
