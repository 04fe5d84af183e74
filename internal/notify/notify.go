// Package notify posts playback events to the guild's text channel.
package notify

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

type messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier implements player.Notifier. Messages are sent in the background
// so the playback chain never waits on Discord.
type Notifier struct {
	msg      messenger
	announce func(guildID string) bool
	logger   *zap.Logger
	wg       sync.WaitGroup
}

var _ player.Notifier = (*Notifier)(nil)

// New returns a Notifier. announce, when non-nil, decides per guild whether
// track starts are posted.
func New(msg messenger, announce func(guildID string) bool, logger *zap.Logger) *Notifier {
	return &Notifier{msg: msg, announce: announce, logger: logger}
}

func (n *Notifier) Notify(ev player.Event) {
	if ev.ChannelID == "" {
		return
	}
	guildID := ev.GuildID.String()
	if ev.Kind == player.EventTrackStarted && n.announce != nil && !n.announce(guildID) {
		return
	}
	text := Message(ev)
	if text == "" {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if _, err := n.msg.ChannelMessageSend(ev.ChannelID, text); err != nil {
			n.logger.Warn("send notification",
				zap.String("guildID", guildID),
				zap.Stringer("event", ev.Kind),
				zap.Error(err))
		}
	}()
}

// Wait blocks until queued messages are sent.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Message renders ev as chat text. Error causes are logged elsewhere and
// never shown here.
func Message(ev player.Event) string {
	switch ev.Kind {
	case player.EventTrackStarted:
		if ev.Track == nil {
			return ""
		}
		t := ev.Track
		line := "▶ now playing: **" + utils.EscapeMd(t.Title) + "**"
		if t.Author != "" {
			line += " by " + utils.EscapeMd(t.Author)
		}
		if t.Length > 0 {
			line += " `" + utils.PrettyTime(t.Length) + "`"
		}
		return line
	case player.EventQueueExhausted:
		return "queue finished, nothing left to play"
	case player.EventResolutionFailed:
		if ev.Query != "" {
			return fmt.Sprintf("couldn't load **%s**, giving up for now", utils.EscapeMd(ev.Query))
		}
		return "couldn't load the next tracks, giving up for now"
	case player.EventPlaybackError:
		if ev.Track != nil {
			return fmt.Sprintf("playback of **%s** failed, moving on", utils.EscapeMd(ev.Track.Title))
		}
		return "playback failed, moving on"
	case player.EventVoiceDisconnected:
		return "not connected to a voice channel"
	case player.EventQueueCleared:
		return "stopped and cleared the queue"
	}
	return ""
}
