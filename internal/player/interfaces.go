package player

import "context"

// Resolver turns a URL or search term into a playable track.
type Resolver interface {
	Resolve(ctx context.Context, query string) (Track, error)
}

// Sink is an active voice connection. onComplete must be called exactly
// once per successful Play, with nil on natural end or Stop, or with the
// playback error. It must not be called from inside Play.
type Sink interface {
	Play(streamURL string, onComplete func(error)) error
	Stop()
	IsConnected() bool
	IsPlaying() bool
}

type EventKind int

const (
	EventTrackStarted EventKind = iota
	EventQueueExhausted
	EventResolutionFailed
	EventPlaybackError
	EventVoiceDisconnected
	EventQueueCleared
)

func (k EventKind) String() string {
	switch k {
	case EventTrackStarted:
		return "track_started"
	case EventQueueExhausted:
		return "queue_exhausted"
	case EventResolutionFailed:
		return "resolution_failed"
	case EventPlaybackError:
		return "playback_error"
	case EventVoiceDisconnected:
		return "voice_disconnected"
	case EventQueueCleared:
		return "queue_cleared"
	}
	return "unknown"
}

// Event is what the coordinator reports to the Notifier. It carries no
// user-facing text.
type Event struct {
	Kind      EventKind
	GuildID   GuildID
	ChannelID string
	Track     *Track
	Query     string
	Err       error
}

type Notifier interface {
	Notify(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
