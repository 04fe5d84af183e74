// Package resolver turns user queries into playable tracks using yt-dlp.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

// resolved stream URLs stop working after a few hours
const streamTTL = 5 * time.Hour

var (
	ErrNoResults       = errors.New("no results")
	ErrNoStream        = errors.New("no usable media URL")
	ErrSpotifyDisabled = errors.New("spotify is not enabled")
)

type extractor interface {
	Extract(ctx context.Context, query string) (mediaInfo, error)
	Playlist(ctx context.Context, url string) ([]mediaInfo, error)
}

// SpotifySource expands Spotify links into search queries.
type SpotifySource interface {
	Queries(ctx context.Context, link string, limit int) ([]string, error)
}

type cacheEntry struct {
	track      player.Track
	resolvedAt time.Time
}

type Resolver struct {
	ext     extractor
	spotify SpotifySource
	cache   *lru.Cache[string, cacheEntry]
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

func New(cfg *config.Config, spotify SpotifySource, logger *zap.Logger) (*Resolver, error) {
	return newResolver(&ytdlpClient{cookiesPath: cfg.YouTubeCookiesPath}, spotify, cfg, logger)
}

func newResolver(ext extractor, spotify SpotifySource, cfg *config.Config, logger *zap.Logger) (*Resolver, error) {
	cache, err := lru.New[string, cacheEntry](cfg.ResolverCacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := max(1, cfg.ResolveWorkers)
	return &Resolver{
		ext:     ext,
		spotify: spotify,
		cache:   cache,
		sem:     semaphore.NewWeighted(int64(cfg.ResolveWorkers)),
		limiter: rate.NewLimiter(rate.Limit(cfg.ResolveRatePerSec), burst),
		logger:  logger,
		now:     time.Now,
	}, nil
}

func isURL(q string) bool {
	return strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://")
}

func isSpotify(q string) bool {
	return strings.HasPrefix(q, "spotify:") || strings.Contains(q, "open.spotify.com")
}

func isYouTubePlaylist(q string) bool {
	return (strings.Contains(q, "youtube.com") || strings.Contains(q, "youtu.be")) &&
		strings.Contains(q, "list=")
}

// normalize maps free text to a yt-dlp search and leaves URLs alone.
func normalize(query string) string {
	q := strings.TrimSpace(query)
	if isURL(q) || strings.HasPrefix(q, "ytsearch") {
		return q
	}
	return "ytsearch1:" + q
}

// searchLabel turns `ytsearch1:"name" "artist"` into "name artist".
func searchLabel(q string) string {
	rest, _ := strings.CutPrefix(q, "ytsearch1:")
	return strings.Join(strings.Fields(strings.ReplaceAll(rest, `"`, " ")), " ")
}

// Resolve returns a playable track for query. Results are cached per
// normalized query; at most ResolveWorkers extractions run at once.
func (r *Resolver) Resolve(ctx context.Context, query string) (player.Track, error) {
	key := normalize(query)
	if key == "ytsearch1:" {
		return player.Track{}, &player.ResolutionError{Query: query, Err: ErrNoResults}
	}

	if ent, ok := r.cache.Get(key); ok && r.now().Sub(ent.resolvedAt) < streamTTL {
		r.logger.Debug("resolver cache hit", zap.String("query", key))
		return ent.track, nil
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return player.Track{}, &player.ResolutionError{Query: query, Err: err}
	}
	defer r.sem.Release(1)

	if err := r.limiter.Wait(ctx); err != nil {
		return player.Track{}, &player.ResolutionError{Query: query, Err: err}
	}

	start := time.Now()
	info, err := r.ext.Extract(ctx, key)
	if err != nil {
		r.logger.Warn("extraction failed", zap.String("query", key), zap.Error(err))
		return player.Track{}, &player.ResolutionError{Query: query, Err: err}
	}
	track := trackFromInfo(info)
	if track.StreamURL == "" {
		return player.Track{}, &player.ResolutionError{Query: query, Err: ErrNoStream}
	}
	r.logger.Debug("resolved track",
		zap.String("query", key),
		zap.String("title", track.Title),
		zap.Duration("took", time.Since(start)))

	ent := cacheEntry{track: track, resolvedAt: r.now()}
	r.cache.Add(key, ent)
	if track.URL != "" && track.URL != key {
		r.cache.Add(track.URL, ent)
	}
	return track, nil
}

func trackFromInfo(info mediaInfo) player.Track {
	page := info.WebpageURL
	if page == "" && info.ID != "" {
		page = "https://www.youtube.com/watch?v=" + info.ID
	}
	return player.Track{
		Title:     info.Title,
		StreamURL: info.streamURL(),
		URL:       page,
		Length:    max(0, int(info.Duration)),
		Thumbnail: info.Thumbnail,
		Author:    info.Uploader,
	}
}

// Expand turns a play request into queue entries. Playlists become pending
// entries that the coordinator resolves when they come up; anything else is
// resolved right away.
func (r *Resolver) Expand(ctx context.Context, query string, limit int) ([]player.Entry, error) {
	q := strings.TrimSpace(query)

	switch {
	case isSpotify(q):
		if r.spotify == nil {
			return nil, ErrSpotifyDisabled
		}
		queries, err := r.spotify.Queries(ctx, q, limit)
		if err != nil {
			return nil, fmt.Errorf("spotify: %w", err)
		}
		out := make([]player.Entry, 0, len(queries))
		for _, sq := range queries {
			out = append(out, player.PendingTitled(sq, searchLabel(sq)))
		}
		return out, nil

	case isYouTubePlaylist(q):
		items, err := r.ext.Playlist(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]player.Entry, 0, len(items))
		for _, it := range items {
			if limit > 0 && len(out) >= limit {
				break
			}
			switch {
			case it.WebpageURL != "":
				out = append(out, player.PendingTitled(it.WebpageURL, it.Title))
			case it.URL != "" && isURL(it.URL):
				out = append(out, player.PendingTitled(it.URL, it.Title))
			case it.ID != "":
				out = append(out, player.PendingTitled("https://www.youtube.com/watch?v="+it.ID, it.Title))
			}
		}
		if len(out) == 0 {
			return nil, ErrNoResults
		}
		return out, nil
	}

	t, err := r.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return []player.Entry{player.Resolved(t)}, nil
}
