package player

import (
	"strconv"
	"strings"
	"time"
)

// GuildID is a Discord guild snowflake.
type GuildID uint64

func ParseGuildID(s string) (GuildID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return GuildID(v), nil
}

func (g GuildID) String() string { return strconv.FormatUint(uint64(g), 10) }

// Track is the resolved metadata of one playable item. It is passed by value
// and never mutated after the resolver builds it.
type Track struct {
	Title     string
	StreamURL string
	URL       string // canonical webpage URL
	Length    int    // seconds, 0 when unknown
	Thumbnail string
	Author    string
}

// Entry is one slot in the pending queue: either a resolved track or a query
// that still has to go through the resolver before it can play.
type Entry struct {
	resolved bool
	track    Track
	query    string
	label    string
}

func Resolved(t Track) Entry { return Entry{resolved: true, track: t} }

func Pending(query string) Entry { return Entry{query: query} }

// PendingTitled is a pending entry whose title is already known, as with
// playlist items.
func PendingTitled(query, title string) Entry { return Entry{query: query, label: title} }

func (e Entry) IsPending() bool { return !e.resolved }

// Track returns the resolved track; ok is false for pending entries.
func (e Entry) Track() (t Track, ok bool) {
	return e.track, e.resolved
}

// Query is what gets handed to the resolver when the entry is chosen.
func (e Entry) Query() string {
	if !e.resolved {
		return e.query
	}
	if e.track.URL != "" {
		return e.track.URL
	}
	return e.track.StreamURL
}

func (e Entry) Title() string {
	switch {
	case e.resolved:
		return e.track.Title
	case e.label != "":
		return e.label
	}
	return e.query
}

// placeholder stands in for a pending entry while it resolves.
func (e Entry) placeholder() Track {
	t := Track{Title: e.Title()}
	if strings.HasPrefix(e.query, "http://") || strings.HasPrefix(e.query, "https://") {
		t.URL = e.query
	}
	return t
}

type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatCurrent
	RepeatQueue
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatCurrent:
		return "current"
	case RepeatQueue:
		return "queue"
	default:
		return "none"
	}
}

// Next returns the following mode in the none → current → queue cycle.
func (m RepeatMode) Next() RepeatMode {
	return (m + 1) % 3
}

func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "current":
		return RepeatCurrent
	case "queue":
		return RepeatQueue
	default:
		return RepeatNone
	}
}

// Snapshot is a read-only copy of a guild's queue for display.
type Snapshot struct {
	Current     *Track
	Pending     []Entry
	QueueLength int
	IsPlaying   bool
	RepeatMode  RepeatMode
	StartedAt   time.Time
}

// Elapsed is the time since the current track started, zero when idle.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.Current == nil || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
