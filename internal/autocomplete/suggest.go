// Package autocomplete suggests search terms for the play command.
package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	suggestURL = "https://suggestqueries.google.com/complete/search"
	// Discord rejects choice names and values longer than this.
	maxChoiceLen = 100
	cacheSize    = 500
	cacheTTL     = 10 * time.Minute
)

type Suggester struct {
	client  *http.Client
	baseURL string
	cache   *expirable.LRU[string, []string]
}

func New() *Suggester {
	return &Suggester{
		client:  &http.Client{Timeout: 2 * time.Second},
		baseURL: suggestURL,
		cache:   expirable.NewLRU[string, []string](cacheSize, nil, cacheTTL),
	}
}

// YouTube returns search completions for query from YouTube's suggest
// endpoint.
func (s *Suggester) YouTube(ctx context.Context, query string) ([]string, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return nil, nil
	}
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: status %d", resp.StatusCode)
	}

	// ["query", ["suggestion", ...]]
	var parsed []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	var out []string
	if len(parsed) > 1 {
		if err := json.Unmarshal(parsed[1], &out); err != nil {
			return nil, fmt.Errorf("suggest: %w", err)
		}
	}
	s.cache.Add(key, out)
	return out, nil
}

// Choices builds at most limit autocomplete choices. The typed query always
// comes first so it can be submitted as-is.
func (s *Suggester) Choices(ctx context.Context, query string, limit int) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	query = strings.TrimSpace(query)
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	if query == "" || limit <= 0 {
		return out, nil
	}
	out = append(out, choice(query))

	yt, err := s.YouTube(ctx, query)
	for _, v := range yt {
		if len(out) >= limit {
			break
		}
		if strings.EqualFold(v, query) {
			continue
		}
		out = append(out, choice(v))
	}
	return out, err
}

func choice(v string) *discordgo.ApplicationCommandOptionChoice {
	v = truncate(v, maxChoiceLen)
	return &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
