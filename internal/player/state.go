package player

import (
	"sync"
	"time"
)

const (
	DefaultQueueCapacity   = 50
	DefaultHistoryCapacity = 50
)

// GuildState is one guild's queue and playback state. Every
// read-modify-write goes through mu.
type GuildState struct {
	guildID    GuildID
	queueCap   int
	historyCap int

	mu        sync.Mutex
	pending   []Entry
	current   *Track
	startedAt time.Time
	repeat    RepeatMode
	history   []Track
	playing   bool

	// chain bookkeeping, owned by the coordinator
	advancing  bool
	handoff    bool // a completion passed advancing to the scheduled Advance
	generation uint64
	playToken  uint64
	skipRepeat bool
	sink       Sink
	channelID  string
}

func NewGuildState(guildID GuildID, queueCap, historyCap int) *GuildState {
	if queueCap <= 0 {
		queueCap = DefaultQueueCapacity
	}
	if historyCap < 0 {
		historyCap = DefaultHistoryCapacity
	}
	// a refill must fit the pending queue
	historyCap = min(historyCap, queueCap)
	return &GuildState{
		guildID:    guildID,
		queueCap:   queueCap,
		historyCap: historyCap,
	}
}

func (g *GuildState) GuildID() GuildID { return g.guildID }

// AddTrack appends e and returns its 1-based position.
func (g *GuildState) AddTrack(e Entry) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(e)
}

func (g *GuildState) addLocked(e Entry) (int, error) {
	if len(g.pending) >= g.queueCap {
		return 0, ErrQueueFull
	}
	g.pending = append(g.pending, e)
	return len(g.pending), nil
}

// ClearQueue empties the pending queue and the history buffer. The current
// track is left alone.
func (g *GuildState) ClearQueue() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearLocked()
}

func (g *GuildState) clearLocked() {
	g.pending = nil
	g.history = nil
}

// HandleRepeatTransition applies the repeat mode once for a finished track.
// It returns the track to replay under RepeatCurrent, otherwise nil and the
// caller pops the next pending entry.
func (g *GuildState) HandleRepeatTransition() *Track {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.repeatTransitionLocked(false)
}

func (g *GuildState) repeatTransitionLocked(skip bool) *Track {
	switch g.repeat {
	case RepeatCurrent:
		if g.current != nil && !skip {
			t := *g.current
			return &t
		}
	case RepeatQueue:
		if g.current != nil {
			g.pushHistoryLocked(*g.current)
		}
		if len(g.pending) == 0 && len(g.history) > 0 {
			n := min(len(g.history), g.queueCap)
			refill := make([]Entry, 0, n)
			for _, t := range g.history[:n] {
				refill = append(refill, Resolved(t))
			}
			g.pending = refill
			if n == len(g.history) {
				g.history = nil
			} else {
				g.history = append([]Track(nil), g.history[n:]...)
			}
		}
	}
	return nil
}

func (g *GuildState) pushHistoryLocked(t Track) {
	if g.historyCap == 0 {
		return
	}
	g.history = append(g.history, t)
	if over := len(g.history) - g.historyCap; over > 0 {
		g.history = append([]Track(nil), g.history[over:]...)
	}
}

func (g *GuildState) popLocked() (Entry, bool) {
	if len(g.pending) == 0 {
		return Entry{}, false
	}
	e := g.pending[0]
	g.pending[0] = Entry{}
	g.pending = g.pending[1:]
	return e, true
}

func (g *GuildState) RepeatMode() RepeatMode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.repeat
}

func (g *GuildState) SetRepeatMode(m RepeatMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.repeat = m
}

// CycleRepeatMode moves to the next repeat mode and returns it.
func (g *GuildState) CycleRepeatMode() RepeatMode {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.repeat = g.repeat.Next()
	return g.repeat
}

func (g *GuildState) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{
		Pending:     append([]Entry(nil), g.pending...),
		QueueLength: len(g.pending),
		IsPlaying:   g.playing,
		RepeatMode:  g.repeat,
		StartedAt:   g.startedAt,
	}
	if g.current != nil {
		t := *g.current
		s.Current = &t
	}
	return s
}

// History returns a copy of the repeat-queue history buffer.
func (g *GuildState) History() []Track {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Track(nil), g.history...)
}

func (g *GuildState) setIdleLocked() {
	g.current = nil
	g.playing = false
	g.startedAt = time.Time{}
	g.advancing = false
	g.handoff = false
}
