// Package spotify expands Spotify links into YouTube searches.
package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

type Track struct {
	Name   string
	Artist string
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(context.Background())
	return &Client{raw: spotify.New(httpClient, spotify.WithRetry(true))}
}

func ParseID(raw string) (typ string, id spotify.ID, err error) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", fmt.Errorf("invalid spotify URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", fmt.Errorf("not a spotify URL")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid spotify URL path")
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type")
}

func firstArtist(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func full(out []Track, limit int) bool {
	return limit > 0 && len(out) >= limit
}

func (c *Client) albumTracks(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []Track
	for {
		for _, t := range page.Tracks {
			if full(out, limit) {
				return out, nil
			}
			out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
		}
		if page.Next == "" || full(out, limit) || c.raw.NextPage(ctx, page) != nil {
			return out, nil
		}
	}
}

func (c *Client) playlistTracks(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []Track
	for {
		for _, it := range page.Items {
			if full(out, limit) {
				return out, nil
			}
			if t := it.Track.Track; t != nil {
				out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
			}
		}
		if page.Next == "" || full(out, limit) || c.raw.NextPage(ctx, page) != nil {
			return out, nil
		}
	}
}

func (c *Client) artistTop(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	top, err := c.raw.GetArtistsTopTracks(ctx, id, "US")
	if err != nil {
		return nil, err
	}
	var out []Track
	for _, t := range top {
		if full(out, limit) {
			break
		}
		out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
	}
	return out, nil
}

// Queries expands a Spotify link into yt-dlp search queries, one per track.
func (c *Client) Queries(ctx context.Context, link string, limit int) ([]string, error) {
	typ, id, err := ParseID(link)
	if err != nil {
		return nil, err
	}

	var tracks []Track
	switch typ {
	case "album":
		tracks, err = c.albumTracks(ctx, id, limit)
	case "playlist":
		tracks, err = c.playlistTracks(ctx, id, limit)
	case "artist":
		tracks, err = c.artistTop(ctx, id, limit)
	case "track":
		var t *spotify.FullTrack
		t, err = c.raw.GetTrack(ctx, id)
		if err == nil {
			tracks = []Track{{Name: t.Name, Artist: firstArtist(t.Artists)}}
		}
	default:
		return nil, fmt.Errorf("unsupported spotify type: %s", typ)
	}
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, SearchQuery(t))
	}
	return out, nil
}

// SearchQuery is the YouTube search used to find a Spotify track.
func SearchQuery(t Track) string {
	if t.Artist == "" {
		return fmt.Sprintf(`ytsearch1:"%s"`, t.Name)
	}
	return fmt.Sprintf(`ytsearch1:"%s" "%s"`, t.Name, t.Artist)
}
