package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
)

// mediaInfo is the subset of yt-dlp output the resolver needs.
type mediaInfo struct {
	ID         string
	Title      string
	Uploader   string
	Duration   float64
	IsLive     bool
	WebpageURL string
	URL        string
	Thumbnail  string
	Formats    []string
	Requested  []string
}

var installOnce sync.Once

func str(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func num(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func flag(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}

func toMediaInfo(e *ytdlp.ExtractedInfo) mediaInfo {
	m := mediaInfo{
		ID:         e.ID,
		Title:      str(e.Title),
		Uploader:   str(e.Uploader),
		Duration:   num(e.Duration),
		IsLive:     flag(e.IsLive),
		WebpageURL: str(e.WebpageURL),
		URL:        str(e.URL),
	}
	if n := len(e.Thumbnails); n > 0 && e.Thumbnails[n-1] != nil {
		m.Thumbnail = e.Thumbnails[n-1].URL
	}
	for _, f := range e.RequestedFormats {
		if f != nil {
			m.Requested = append(m.Requested, f.URL)
		}
	}
	for _, f := range e.Formats {
		if f != nil {
			m.Formats = append(m.Formats, f.URL)
		}
	}
	return m
}

// streamURL picks the best playable URL: requested formats, the top-level
// url, then any format.
func (m mediaInfo) streamURL() string {
	for _, u := range m.Requested {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	if strings.HasPrefix(m.URL, "http") {
		return m.URL
	}
	for _, u := range m.Formats {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	return ""
}

// ytdlpClient runs the yt-dlp binary through go-ytdlp.
type ytdlpClient struct {
	cookiesPath string
}

func (c *ytdlpClient) command() *ytdlp.Command {
	installOnce.Do(func() {
		// cmd.Run surfaces a missing binary
		_, _ = ytdlp.Install(context.Background(), nil)
	})
	cmd := ytdlp.New().NoCheckCertificates()
	if c.cookiesPath != "" {
		cmd = cmd.Cookies(c.cookiesPath)
	}
	return cmd
}

// Extract returns the single item for a URL or "ytsearch1:" query.
func (c *ytdlpClient) Extract(ctx context.Context, query string) (mediaInfo, error) {
	cmd := c.command().
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoPlaylist().
		DumpJSON()

	res, err := cmd.Run(ctx, query)
	if err != nil {
		return mediaInfo{}, fmt.Errorf("yt-dlp run: %w", err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return mediaInfo{}, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return mediaInfo{}, ErrNoResults
	}
	ext := infos[0]
	// search results come back as a container
	if len(ext.Entries) > 0 {
		for _, e := range ext.Entries {
			if e != nil {
				return toMediaInfo(e), nil
			}
		}
		return mediaInfo{}, ErrNoResults
	}
	return toMediaInfo(ext), nil
}

// Playlist lists the entries of a playlist URL without resolving them.
func (c *ytdlpClient) Playlist(ctx context.Context, url string) ([]mediaInfo, error) {
	cmd := c.command().
		FlatPlaylist().
		DumpJSON()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist fetch failed for %s: %w", url, err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp playlist json for %s: %w", url, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, ErrNoResults
	}

	out := make([]mediaInfo, 0, len(infos[0].Entries))
	for _, e := range infos[0].Entries {
		if e == nil {
			continue
		}
		out = append(out, toMediaInfo(e))
	}
	return out, nil
}
