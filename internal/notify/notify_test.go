package notify

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

type sent struct {
	channelID string
	content   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeMessenger) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{channelID, content})
	return &discordgo.Message{}, f.err
}

func TestMessage(t *testing.T) {
	track := &player.Track{Title: "lo_fi *beats*", Author: "Chill", Length: 185}
	tests := []struct {
		name string
		ev   player.Event
		want []string
		not  []string
	}{
		{
			name: "started",
			ev:   player.Event{Kind: player.EventTrackStarted, Track: track},
			want: []string{`lo\_fi \*beats\*`, "Chill", "3:05"},
		},
		{
			name: "playback error hides cause",
			ev:   player.Event{Kind: player.EventPlaybackError, Track: track, Err: errors.New("ffmpeg: exit status 1")},
			want: []string{"failed"},
			not:  []string{"ffmpeg"},
		},
		{
			name: "resolution failed hides cause",
			ev:   player.Event{Kind: player.EventResolutionFailed, Query: "some song", Err: errors.New("http 403")},
			want: []string{"some song"},
			not:  []string{"403"},
		},
		{name: "exhausted", ev: player.Event{Kind: player.EventQueueExhausted}, want: []string{"queue finished"}},
		{name: "cleared", ev: player.Event{Kind: player.EventQueueCleared}, want: []string{"cleared"}},
		{name: "disconnected", ev: player.Event{Kind: player.EventVoiceDisconnected}, want: []string{"voice channel"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Message(tt.ev)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Message() = %q, missing %q", got, w)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(got, n) {
					t.Errorf("Message() = %q, leaks %q", got, n)
				}
			}
		})
	}

	if got := Message(player.Event{Kind: player.EventTrackStarted}); got != "" {
		t.Errorf("started without track = %q, want empty", got)
	}
}

func TestNotify(t *testing.T) {
	msg := &fakeMessenger{}
	announce := map[string]bool{"1": true, "2": false}
	n := New(msg, func(g string) bool { return announce[g] }, zap.NewNop())

	track := &player.Track{Title: "A"}
	n.Notify(player.Event{Kind: player.EventTrackStarted, GuildID: 1, ChannelID: "c1", Track: track})
	n.Notify(player.Event{Kind: player.EventTrackStarted, GuildID: 2, ChannelID: "c2", Track: track})
	// announcements off only mutes track starts
	n.Notify(player.Event{Kind: player.EventQueueExhausted, GuildID: 2, ChannelID: "c2"})
	// no bound channel
	n.Notify(player.Event{Kind: player.EventQueueExhausted, GuildID: 3})
	n.Wait()

	if len(msg.sent) != 2 {
		t.Fatalf("sent %d messages, want 2: %+v", len(msg.sent), msg.sent)
	}
	channels := map[string]bool{}
	for _, s := range msg.sent {
		channels[s.channelID] = true
	}
	if !channels["c1"] || !channels["c2"] {
		t.Errorf("sent to %v, want c1 and c2", channels)
	}
}

func TestNotifySendErrorIsLogged(t *testing.T) {
	msg := &fakeMessenger{err: errors.New("missing access")}
	n := New(msg, nil, zap.NewNop())
	n.Notify(player.Event{Kind: player.EventQueueCleared, GuildID: 1, ChannelID: "c1"})
	n.Wait()
	if len(msg.sent) != 1 {
		t.Fatalf("sent %d, want 1", len(msg.sent))
	}
}
