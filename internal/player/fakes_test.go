package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSink struct {
	mu        sync.Mutex
	connected bool
	playing   bool
	played    []string
	pending   func(error)
	playErr   error
}

func newFakeSink() *fakeSink { return &fakeSink{connected: true} }

func (s *fakeSink) Play(streamURL string, onComplete func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.played = append(s.played, streamURL)
	s.playing = true
	s.pending = onComplete
	return nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	cb := s.pending
	s.pending = nil
	s.playing = false
	s.mu.Unlock()
	if cb != nil {
		go cb(nil)
	}
}

func (s *fakeSink) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// finish simulates the end of the current stream.
func (s *fakeSink) finish(err error) bool {
	s.mu.Lock()
	cb := s.pending
	s.pending = nil
	s.playing = false
	s.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(err)
	return true
}

func (s *fakeSink) playedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

type fakeResolver struct {
	mu    sync.Mutex
	fail  map[string]bool
	block chan struct{}
	calls []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{fail: make(map[string]bool)}
}

func (r *fakeResolver) Resolve(ctx context.Context, query string) (Track, error) {
	r.mu.Lock()
	r.calls = append(r.calls, query)
	fail := r.fail[query]
	block := r.block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Track{}, ctx.Err()
		}
	}
	if fail {
		return Track{}, &ResolutionError{Query: query, Err: errors.New("unavailable")}
	}
	return testTrack(query), nil
}

// testTrack builds the track the fake resolver returns for a title. Its
// webpage URL resolves back to the same title.
func testTrack(title string) Track {
	return Track{
		Title:     title,
		StreamURL: "stream://" + title,
		URL:       title,
		Length:    10,
	}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *fakeNotifier) Notify(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *fakeNotifier) count(kind EventKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Kind == kind {
			c++
		}
	}
	return c
}

func (n *fakeNotifier) last(kind EventKind) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Kind == kind {
			return n.events[i], true
		}
	}
	return Event{}, false
}

type harness struct {
	reg      *Registry
	queue    *QueueManager
	coord    *Coordinator
	resolver *fakeResolver
	sink     *fakeSink
	notifier *fakeNotifier
}

func newHarness(t *testing.T, opts CoordinatorOptions) *harness {
	t.Helper()
	h := &harness{
		reg:      NewRegistry(DefaultQueueCapacity, DefaultHistoryCapacity),
		resolver: newFakeResolver(),
		sink:     newFakeSink(),
		notifier: &fakeNotifier{},
	}
	h.queue = NewQueueManager(h.reg, nil)
	h.coord = NewCoordinator(h.reg, h.resolver, h.notifier, nil, nil, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.coord.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) enqueue(t *testing.T, guildID GuildID, titles ...string) {
	t.Helper()
	for _, title := range titles {
		if _, err := h.queue.Enqueue(guildID, Resolved(testTrack(title))); err != nil {
			t.Fatalf("Enqueue(%s) error: %v", title, err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func titles(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title()
	}
	return out
}
