package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

const queuePageSize = 10

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionsOf(i.ApplicationCommandData().Options)
	snap := h.queue.Snapshot(guildIDOf(i))
	h.reply(s, i, renderQueue(snap, opts.intOr("page", 1), queuePageSize, time.Now()), false)
}

// renderQueue formats one page of the queue; page is 1-based and clamped.
func renderQueue(snap player.Snapshot, page, pageSize int, now time.Time) string {
	if snap.Current == nil && len(snap.Pending) == 0 {
		return "the queue is empty"
	}

	var b strings.Builder
	if snap.Current != nil {
		fmt.Fprintf(&b, "**Now playing:** %s `%s`\n",
			utils.EscapeMd(snap.Current.Title), progress(snap.Elapsed(now), snap.Current.Length))
	}
	if snap.RepeatMode != player.RepeatNone {
		fmt.Fprintf(&b, "repeat: %s\n", snap.RepeatMode)
	}
	if len(snap.Pending) == 0 {
		b.WriteString("nothing queued up next")
		return b.String()
	}

	pages := (len(snap.Pending) + pageSize - 1) / pageSize
	page = min(max(page, 1), pages)
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(snap.Pending))
	for idx, e := range snap.Pending[start:end] {
		fmt.Fprintf(&b, "`%d.` %s", start+idx+1, utils.EscapeMd(displayTitle(e)))
		if t, ok := e.Track(); ok && t.Length > 0 {
			fmt.Fprintf(&b, " `%s`", utils.PrettyTime(t.Length))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "page %d/%d, %d queued", page, pages, snap.QueueLength)
	return b.String()
}

func (h *CommandHandler) cmdRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	pos := optionsOf(i.ApplicationCommandData().Options).intOr("position", 1)
	e, ok := h.queue.DequeueAt(guildIDOf(i), pos-1)
	if !ok {
		h.reply(s, i, "no song at that position", true)
		return
	}
	h.logger.Info("cmd remove", zap.String("guildID", i.GuildID), zap.Int("position", pos))
	h.reply(s, i, fmt.Sprintf("removed **%s**", utils.EscapeMd(displayTitle(e))), false)
}

func (h *CommandHandler) cmdMove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionsOf(i.ApplicationCommandData().Options)
	from, to := opts.intOr("from", 0), opts.intOr("to", 0)
	if from < 1 || to < 1 {
		h.reply(s, i, "position must be at least 1", true)
		return
	}
	if !h.queue.Move(guildIDOf(i), from-1, to-1) {
		h.reply(s, i, "no song at that position", true)
		return
	}
	h.logger.Info("cmd move", zap.String("guildID", i.GuildID), zap.Int("from", from), zap.Int("to", to))
	h.reply(s, i, fmt.Sprintf("moved song %s to %s", position(from), position(to)), false)
}

func (h *CommandHandler) cmdShuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.queue.Shuffle(guildIDOf(i)) {
		h.reply(s, i, "need at least two songs queued to shuffle", true)
		return
	}
	h.reply(s, i, "shuffled the queue", false)
}

func (h *CommandHandler) cmdClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.queue.Clear(guildIDOf(i))
	h.logger.Info("cmd clear", zap.String("guildID", i.GuildID), zap.String("userID", userIDOf(i)))
	h.reply(s, i, "cleared the queue", false)
}
