package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
)

func TestCommandListNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commandList() {
		if seen[c.Name] {
			t.Errorf("duplicate command %q", c.Name)
		}
		seen[c.Name] = true
		if c.Description == "" {
			t.Errorf("command %q has no description", c.Name)
		}
	}
	for _, want := range []string{"play", "skip", "stop", "queue", "remove", "move", "shuffle", "clear", "loop", "now-playing", "favorites"} {
		if !seen[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name  string
		entry player.Entry
		want  string
	}{
		{"resolved", player.Resolved(player.Track{Title: "Song"}), "Song"},
		{"spotify search", player.Pending(`ytsearch1:"Song" "Artist"`), "Song Artist"},
		{"plain url", player.Pending("https://youtu.be/x"), "https://youtu.be/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayTitle(tt.entry); got != tt.want {
				t.Errorf("displayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddedMessage(t *testing.T) {
	one := addedMessage(player.Resolved(player.Track{Title: "a_b"}), 1, 3, false)
	if one != `**a\_b** added to the queue (#3)` {
		t.Errorf("single = %q", one)
	}
	many := addedMessage(player.Pending("x"), 5, 5, true)
	if !strings.Contains(many, "added 5 tracks") || !strings.Contains(many, "queue is full") {
		t.Errorf("many = %q", many)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		length  int
		want    string
	}{
		{65 * time.Second, 200, "1:05/3:20"},
		{65 * time.Second, 0, "1:05"},
		{500 * time.Second, 200, "3:20/3:20"},
	}
	for _, tt := range tests {
		if got := progress(tt.elapsed, tt.length); got != tt.want {
			t.Errorf("progress(%v, %d) = %q, want %q", tt.elapsed, tt.length, got, tt.want)
		}
	}
}

func TestRenderQueue(t *testing.T) {
	now := time.Now()
	if got := renderQueue(player.Snapshot{}, 1, 10, now); got != "the queue is empty" {
		t.Errorf("empty = %q", got)
	}

	var pending []player.Entry
	for _, title := range []string{"one", "two", "three", "four", "five"} {
		pending = append(pending, player.Resolved(player.Track{Title: title, Length: 60}))
	}
	snap := player.Snapshot{
		Current:     &player.Track{Title: "cur", Length: 120},
		StartedAt:   now.Add(-30 * time.Second),
		IsPlaying:   true,
		Pending:     pending,
		QueueLength: len(pending),
		RepeatMode:  player.RepeatQueue,
	}

	page2 := renderQueue(snap, 2, 2, now)
	for _, want := range []string{"cur", "0:30/2:00", "repeat: queue", "`3.` three", "`4.` four", "page 2/3, 5 queued"} {
		if !strings.Contains(page2, want) {
			t.Errorf("page 2 missing %q:\n%s", want, page2)
		}
	}
	if strings.Contains(page2, "`1.`") || strings.Contains(page2, "five") {
		t.Errorf("page 2 shows other pages:\n%s", page2)
	}

	// out of range pages clamp
	if last := renderQueue(snap, 99, 2, now); !strings.Contains(last, "`5.` five") {
		t.Errorf("clamped page missing last entry:\n%s", last)
	}
	if first := renderQueue(snap, -1, 2, now); !strings.Contains(first, "`1.` one") {
		t.Errorf("clamped page missing first entry:\n%s", first)
	}
}

func TestNowPlaying(t *testing.T) {
	now := time.Now()
	snap := player.Snapshot{
		Current:    &player.Track{Title: "Song", Author: "Band", Length: 100, URL: "https://example.com/v"},
		StartedAt:  now.Add(-10 * time.Second),
		RepeatMode: player.RepeatCurrent,
	}
	got := nowPlaying(snap, now)
	for _, want := range []string{"**Song** by Band", "0:10/1:40", "repeat current", "<https://example.com/v>"} {
		if !strings.Contains(got, want) {
			t.Errorf("nowPlaying() missing %q: %q", want, got)
		}
	}
}

func TestNowPlayingWhileLoading(t *testing.T) {
	snap := player.Snapshot{Current: &player.Track{Title: "lofi"}}
	got := nowPlaying(snap, time.Now())
	if !strings.Contains(got, "**lofi**") || !strings.Contains(got, "`loading`") {
		t.Errorf("nowPlaying() while loading = %q", got)
	}
}

func TestSettingsText(t *testing.T) {
	got := settingsText(&repository.Settings{PlaylistLimit: 25, DefaultRepeat: player.RepeatQueue})
	for _, want := range []string{"Playlist Limit: 25", "never leave", "Default repeat: queue"} {
		if !strings.Contains(got, want) {
			t.Errorf("settingsText() missing %q:\n%s", want, got)
		}
	}
}

func TestOptions(t *testing.T) {
	opts := optionsOf([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "lofi"},
		{Name: "page", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
		{Name: "skip", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
	})
	if opts.str("query") != "lofi" || opts.intOr("page", 1) != 3 || !opts.flag("skip") {
		t.Errorf("unexpected option values")
	}
	if opts.str("missing") != "" || opts.intOr("missing", 7) != 7 || opts.flag("missing") {
		t.Errorf("missing options should use defaults")
	}
}

func TestListeners(t *testing.T) {
	st := discordgo.NewState()
	if err := st.GuildAdd(&discordgo.Guild{
		ID: "g",
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "human", ChannelID: "vc"},
			{UserID: "bot", ChannelID: "vc"},
			{UserID: "elsewhere", ChannelID: "other"},
		},
	}); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	for _, m := range []*discordgo.Member{
		{GuildID: "g", User: &discordgo.User{ID: "human"}},
		{GuildID: "g", User: &discordgo.User{ID: "bot", Bot: true}},
		{GuildID: "g", User: &discordgo.User{ID: "elsewhere"}},
	} {
		if err := st.MemberAdd(m); err != nil {
			t.Fatalf("MemberAdd: %v", err)
		}
	}

	if n := listeners(st, "g", "vc"); n != 1 {
		t.Errorf("listeners(vc) = %d, want 1", n)
	}
	if n := listeners(st, "g", "empty"); n != 0 {
		t.Errorf("listeners(empty) = %d, want 0", n)
	}
	if n := listeners(st, "unknown", "vc"); n != 0 {
		t.Errorf("listeners(unknown guild) = %d, want 0", n)
	}
}
