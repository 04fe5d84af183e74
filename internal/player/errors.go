package player

import (
	"errors"
	"fmt"
)

var (
	ErrQueueFull         = errors.New("queue is full")
	ErrVoiceDisconnected = errors.New("voice is not connected")
	ErrResolveTimeout    = errors.New("resolution timed out")
)

// ResolutionError is returned by a Resolver when a query cannot be turned
// into a playable track.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PlaybackError is reported when the sink fails while a track is streaming.
type PlaybackError struct {
	Title string
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of %q: %v", e.Title, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
