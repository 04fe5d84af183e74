package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultResolveTimeout     = 30 * time.Second
	DefaultMaxResolveFailures = 3
	DefaultDisconnectDebounce = 10 * time.Second
)

type CoordinatorOptions struct {
	ResolveTimeout     time.Duration
	MaxResolveFailures int
	DisconnectDebounce time.Duration
}

func (o *CoordinatorOptions) applyDefaults() {
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = DefaultResolveTimeout
	}
	if o.MaxResolveFailures <= 0 {
		o.MaxResolveFailures = DefaultMaxResolveFailures
	}
	if o.DisconnectDebounce <= 0 {
		o.DisconnectDebounce = DefaultDisconnectDebounce
	}
}

// Coordinator drives playback for every guild. It is the only writer of a
// state's current track and playing flag.
type Coordinator struct {
	reg      *Registry
	resolver Resolver
	notifier Notifier
	metrics  *Metrics
	logger   *zap.Logger
	opts     CoordinatorOptions

	tasks   chan GuildID
	stopped chan struct{}
	wg      sync.WaitGroup

	timersMu sync.Mutex
	timers   map[GuildID]*time.Timer

	now func() time.Time
}

func NewCoordinator(
	reg *Registry,
	resolver Resolver,
	notifier Notifier,
	metrics *Metrics,
	logger *zap.Logger,
	opts CoordinatorOptions,
) *Coordinator {
	opts.applyDefaults()
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		reg:      reg,
		resolver: resolver,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		tasks:    make(chan GuildID, 64),
		stopped:  make(chan struct{}),
		timers:   make(map[GuildID]*time.Timer),
		now:      time.Now,
	}
}

// Run executes scheduled advances until ctx is done. Completion callbacks
// never call Advance directly; they hand the guild to this loop.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			c.stopTimers()
			return nil
		case guildID := <-c.tasks:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				if err := c.advance(ctx, guildID, true); err != nil {
					c.logger.Debug("scheduled advance ended with error",
						zap.Uint64("guildID", uint64(guildID)), zap.Error(err))
				}
			}()
		}
	}
}

func (c *Coordinator) schedule(guildID GuildID) {
	select {
	case c.tasks <- guildID:
	case <-c.stopped:
	}
}

// Attach binds a voice sink and the text channel used for notifications.
func (c *Coordinator) Attach(guildID GuildID, sink Sink, channelID string) {
	st := c.reg.GetOrCreate(guildID)
	st.mu.Lock()
	st.sink = sink
	if channelID != "" {
		st.channelID = channelID
	}
	st.mu.Unlock()
}

// Advance selects and starts the next track. While another advance is in
// flight, or a track is already playing, it does nothing: the running chain
// continues through its completion callback.
func (c *Coordinator) Advance(ctx context.Context, guildID GuildID) error {
	return c.advance(ctx, guildID, false)
}

// advance runs one chain step. scheduled marks a call from the task loop,
// which takes over the in-flight marker left by a completion.
func (c *Coordinator) advance(ctx context.Context, guildID GuildID, scheduled bool) error {
	st := c.reg.GetOrCreate(guildID)
	logger := c.logger.With(zap.Uint64("guildID", uint64(guildID)))

	st.mu.Lock()
	resumed := scheduled && st.handoff
	if resumed {
		st.handoff = false
	}
	if !resumed && (st.advancing || st.playing) {
		st.mu.Unlock()
		c.metrics.advanceSkipped()
		logger.Debug("advance already in progress")
		return nil
	}
	st.advancing = true
	gen := st.generation
	sink := st.sink
	channelID := st.channelID
	st.mu.Unlock()

	if sink == nil || !sink.IsConnected() {
		st.mu.Lock()
		if st.generation == gen {
			if resumed {
				st.setIdleLocked()
			} else {
				st.advancing = false
			}
		}
		st.mu.Unlock()
		logger.Info("advance skipped, voice not connected")
		c.notify(Event{Kind: EventVoiceDisconnected, GuildID: guildID, ChannelID: channelID, Err: ErrVoiceDisconnected})
		return ErrVoiceDisconnected
	}

	st.mu.Lock()
	if st.generation != gen {
		st.mu.Unlock()
		return nil
	}
	skip := st.skipRepeat
	st.skipRepeat = false
	st.mu.Unlock()

	logger = logger.With(zap.String("chain", uuid.NewString()))

	failures := 0
	var lastErr error
	var lastTitle string

	for {
		st.mu.Lock()
		if st.generation != gen {
			st.mu.Unlock()
			return nil
		}
		var entry Entry
		if forced := st.repeatTransitionLocked(skip); forced != nil {
			entry = Resolved(*forced)
		} else if e, ok := st.popLocked(); ok {
			entry = e
		} else {
			st.setIdleLocked()
			channelID = st.channelID
			st.mu.Unlock()
			c.metrics.setQueueLength(guildID, 0)
			if failures > 0 {
				c.notify(Event{Kind: EventResolutionFailed, GuildID: guildID, ChannelID: channelID, Query: lastTitle, Err: lastErr})
			}
			logger.Info("queue exhausted")
			c.notify(Event{Kind: EventQueueExhausted, GuildID: guildID, ChannelID: channelID})
			return nil
		}
		skip = false
		if t, ok := entry.Track(); ok {
			st.current = &t
		} else {
			// shown until resolution replaces it
			t := entry.placeholder()
			st.current = &t
		}
		st.playing = false
		c.metrics.setQueueLength(guildID, len(st.pending))
		st.mu.Unlock()

		track, err := c.resolve(ctx, entry.Query())
		if err != nil {
			failures++
			lastErr, lastTitle = err, entry.Title()
			c.metrics.resolutionFailed()
			logger.Warn("failed to resolve track",
				zap.String("query", entry.Query()),
				zap.Int("consecutive", failures),
				zap.Error(err))

			st.mu.Lock()
			if st.generation != gen {
				st.mu.Unlock()
				return nil
			}
			st.current = nil
			if failures >= c.opts.MaxResolveFailures {
				st.setIdleLocked()
				channelID = st.channelID
				st.mu.Unlock()
				c.notify(Event{Kind: EventResolutionFailed, GuildID: guildID, ChannelID: channelID, Query: lastTitle, Err: err})
				return err
			}
			st.mu.Unlock()
			continue
		}

		st.mu.Lock()
		if st.generation != gen || st.sink != sink {
			st.mu.Unlock()
			return nil
		}
		st.current = &track
		st.playing = true
		st.startedAt = c.now()
		st.advancing = false
		st.playToken++
		token := st.playToken
		channelID = st.channelID
		st.mu.Unlock()

		err = sink.Play(track.StreamURL, func(perr error) {
			c.onComplete(st, gen, token, track, perr)
		})
		if err == nil {
			st.mu.Lock()
			stale := st.generation != gen
			st.mu.Unlock()
			if stale {
				// stopped while handing the stream over
				sink.Stop()
				return nil
			}
			c.metrics.trackStarted()
			logger.Info("track started", zap.String("title", track.Title), zap.Int("length", track.Length))
			tc := track
			c.notify(Event{Kind: EventTrackStarted, GuildID: guildID, ChannelID: channelID, Track: &tc})
			return nil
		}

		connected := sink.IsConnected()
		st.mu.Lock()
		if st.generation != gen || st.playToken != token {
			st.mu.Unlock()
			return nil
		}
		st.current = nil
		st.playing = false
		st.startedAt = time.Time{}
		if !connected || errors.Is(err, ErrVoiceDisconnected) {
			st.setIdleLocked()
			st.mu.Unlock()
			logger.Warn("voice disconnected during handoff", zap.Error(err))
			c.notify(Event{Kind: EventVoiceDisconnected, GuildID: guildID, ChannelID: channelID, Err: ErrVoiceDisconnected})
			return ErrVoiceDisconnected
		}
		st.advancing = true
		st.mu.Unlock()

		failures++
		perr := &PlaybackError{Title: track.Title, Err: err}
		lastErr, lastTitle = perr, track.Title
		c.metrics.playbackFailed()
		logger.Warn("sink rejected track", zap.String("title", track.Title), zap.Error(err))
		if failures >= c.opts.MaxResolveFailures {
			st.mu.Lock()
			if st.generation == gen {
				st.setIdleLocked()
			}
			st.mu.Unlock()
			tc := track
			c.notify(Event{Kind: EventPlaybackError, GuildID: guildID, ChannelID: channelID, Track: &tc, Err: perr})
			return perr
		}
	}
}

func (c *Coordinator) onComplete(st *GuildState, gen, token uint64, track Track, err error) {
	st.mu.Lock()
	if st.generation != gen || st.playToken != token {
		st.mu.Unlock()
		return
	}
	st.playing = false
	// the scheduled Advance takes the chain over from here
	st.advancing = true
	st.handoff = true
	if err != nil {
		// a broken stream is not replayed by RepeatCurrent
		st.skipRepeat = true
	}
	channelID := st.channelID
	st.mu.Unlock()

	if err != nil {
		c.metrics.playbackFailed()
		c.logger.Warn("playback error",
			zap.Uint64("guildID", uint64(st.guildID)),
			zap.String("title", track.Title),
			zap.Error(err))
		tc := track
		c.notify(Event{
			Kind:      EventPlaybackError,
			GuildID:   st.guildID,
			ChannelID: channelID,
			Track:     &tc,
			Err:       &PlaybackError{Title: track.Title, Err: err},
		})
	}
	c.schedule(st.guildID)
}

func (c *Coordinator) resolve(ctx context.Context, query string) (Track, error) {
	rctx, cancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	defer cancel()

	type result struct {
		track Track
		err   error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		t, err := c.resolver.Resolve(rctx, query)
		done <- result{t, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-rctx.Done():
		r.err = rctx.Err()
	}
	c.metrics.observeResolve(time.Since(start).Seconds())

	if r.err != nil {
		if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Track{}, &ResolutionError{Query: query, Err: ErrResolveTimeout}
		}
		var re *ResolutionError
		if errors.As(r.err, &re) {
			return Track{}, r.err
		}
		return Track{}, &ResolutionError{Query: query, Err: r.err}
	}
	if r.track.StreamURL == "" {
		return Track{}, &ResolutionError{Query: query, Err: fmt.Errorf("no playable stream")}
	}
	return r.track, nil
}

// Skip stops the current track; the completion callback advances. A skip
// is not replayed by RepeatCurrent.
func (c *Coordinator) Skip(guildID GuildID) bool {
	st := c.reg.Peek(guildID)
	if st == nil {
		return false
	}
	st.mu.Lock()
	if !st.playing || st.sink == nil {
		st.mu.Unlock()
		return false
	}
	st.skipRepeat = true
	sink := st.sink
	st.mu.Unlock()

	sink.Stop()
	return true
}

// Stop ends playback, drops the queue and history and invalidates any
// running advance chain. The sink stays attached.
func (c *Coordinator) Stop(guildID GuildID) {
	st := c.reg.Peek(guildID)
	if st == nil {
		return
	}
	sink, channelID := c.cancelChain(st)
	if sink != nil {
		sink.Stop()
	}
	c.metrics.setQueueLength(guildID, 0)
	c.notify(Event{Kind: EventQueueCleared, GuildID: guildID, ChannelID: channelID})
}

func (c *Coordinator) cancelChain(st *GuildState) (Sink, string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.generation++
	st.clearLocked()
	st.setIdleLocked()
	st.skipRepeat = false
	return st.sink, st.channelID
}

// Disconnect stops playback and replaces the guild's state with a fresh one.
// leave, when set, performs the actual voice disconnect.
func (c *Coordinator) Disconnect(guildID GuildID, leave func()) {
	c.cancelTimer(guildID)
	if st := c.reg.Peek(guildID); st != nil {
		sink, channelID := c.cancelChain(st)
		if sink != nil {
			sink.Stop()
		}
		c.notify(Event{Kind: EventQueueCleared, GuildID: guildID, ChannelID: channelID})
	}
	c.reg.Reset(guildID)
	c.metrics.setQueueLength(guildID, 0)
	c.logger.Info("guild state reset after disconnect", zap.Uint64("guildID", uint64(guildID)))
	if leave != nil {
		leave()
	}
}

// ChannelEmptied schedules a disconnect after the debounce delay. stillEmpty
// is checked once when the delay expires.
func (c *Coordinator) ChannelEmptied(guildID GuildID, stillEmpty func() bool, leave func()) {
	c.DisconnectAfter(guildID, c.opts.DisconnectDebounce, stillEmpty, leave)
}

// DisconnectAfter disconnects the guild once d has passed and check still
// holds. A later call for the same guild replaces the pending one.
func (c *Coordinator) DisconnectAfter(guildID GuildID, d time.Duration, check func() bool, leave func()) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if t, ok := c.timers[guildID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		c.timersMu.Lock()
		if c.timers[guildID] != timer {
			c.timersMu.Unlock()
			return
		}
		delete(c.timers, guildID)
		c.timersMu.Unlock()

		if check != nil && !check() {
			return
		}
		c.logger.Info("leaving voice channel", zap.Uint64("guildID", uint64(guildID)))
		c.Disconnect(guildID, leave)
	})
	c.timers[guildID] = timer
}

// ChannelOccupied cancels a pending empty-channel disconnect.
func (c *Coordinator) ChannelOccupied(guildID GuildID) {
	c.cancelTimer(guildID)
}

func (c *Coordinator) cancelTimer(guildID GuildID) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if t, ok := c.timers[guildID]; ok {
		t.Stop()
		delete(c.timers, guildID)
	}
}

func (c *Coordinator) stopTimers() {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Coordinator) notify(ev Event) {
	c.notifier.Notify(ev)
}
