package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateFavorite = errors.New("favorite already exists")
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertSettings returns the guild's settings, creating the defaults row on
// first use.
func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id) VALUES (?)`, guild,
	); err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, playlist_limit, seconds_wait_after_empty, leave_if_no_listeners,
	       queue_add_ephemeral, announce_tracks, default_repeat_mode
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var leave, ephemeral, announce, repeat int
	if err := row.Scan(
		&s.GuildID,
		&s.PlaylistLimit,
		&s.SecondsWaitAfterEmpty,
		&leave,
		&ephemeral,
		&announce,
		&repeat,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.LeaveIfNoListeners = leave != 0
	s.QAddEphemeral = ephemeral != 0
	s.AnnounceTracks = announce != 0
	s.DefaultRepeat = player.RepeatMode(repeat)
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
		  playlist_limit=?,
		  seconds_wait_after_empty=?,
		  leave_if_no_listeners=?,
		  queue_add_ephemeral=?,
		  announce_tracks=?,
		  default_repeat_mode=?
		WHERE guild_id=?`,
		s.PlaylistLimit, s.SecondsWaitAfterEmpty, boolToInt(s.LeaveIfNoListeners),
		boolToInt(s.QAddEphemeral), boolToInt(s.AnnounceTracks), int(s.DefaultRepeat),
		s.GuildID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) AddFavorite(ctx context.Context, f *Favorite) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites(guild_id, author_id, name, query) VALUES (?,?,?,?)`,
		f.GuildID, f.Author, f.Name, f.Query,
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateFavorite
		}
		return err
	}
	f.ID, _ = res.LastInsertId()
	return nil
}

func (r *Repo) RemoveFavorite(ctx context.Context, guild, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) FindFavorite(ctx context.Context, guild, name string) (*Favorite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, guild_id, author_id, name, query FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	var f Favorite
	if err := row.Scan(&f.ID, &f.GuildID, &f.Author, &f.Name, &f.Query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *Repo) ListFavorites(ctx context.Context, guild string) ([]Favorite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, guild_id, author_id, name, query FROM favorites WHERE guild_id=? ORDER BY name ASC`, guild)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.GuildID, &f.Author, &f.Name, &f.Query); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
