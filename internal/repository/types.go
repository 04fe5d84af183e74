package repository

import (
	"database/sql"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

type Repo struct {
	db *sql.DB
}

// Settings are the per-guild preferences that shape playback.
type Settings struct {
	GuildID               string
	PlaylistLimit         int
	SecondsWaitAfterEmpty int
	LeaveIfNoListeners    bool
	QAddEphemeral         bool
	AnnounceTracks        bool
	DefaultRepeat         player.RepeatMode
}

type Favorite struct {
	ID      int64
	GuildID string
	Author  string
	Name    string
	Query   string
}
