package handlers

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionsOf(i.ApplicationCommandData().Options)
	h.enqueue(s, i, opts.str("query"), opts.flag("shuffle"), opts.flag("skip"))
}

// enqueue expands query into the guild's queue and starts playback if idle.
func (h *CommandHandler) enqueue(s *discordgo.Session, i *discordgo.InteractionCreate, query string, shuffle, skip bool) {
	gid := guildIDOf(i)
	logger := h.logger.With(zap.String("guildID", i.GuildID), zap.String("userID", userIDOf(i)))

	chID, ok := userInVoice(s, i.GuildID, userIDOf(i))
	if !ok {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}

	set, err := h.repo.UpsertSettings(h.ctx, i.GuildID)
	if err != nil {
		logger.Error("load settings", zap.Error(err))
		h.reply(s, i, "internal error", true)
		return
	}
	h.deferReply(s, i, set.QAddEphemeral)

	conn, joined, err := h.voice.connect(s, i.GuildID, chID)
	if err != nil {
		logger.Warn("voice connect failed", zap.String("channelID", chID), zap.Error(err))
		h.editReply(s, i, "couldn't connect to channel")
		return
	}
	h.coord.Attach(gid, conn, i.ChannelID)
	if joined {
		h.queue.SetRepeatMode(gid, set.DefaultRepeat)
	}

	// PLAYLIST_LIMIT caps what guilds may configure
	limit := min(set.PlaylistLimit, h.cfg.PlaylistLimit)
	entries, err := h.res.Expand(h.ctx, query, limit)
	if err != nil || len(entries) == 0 {
		logger.Debug("expand query failed", zap.String("query", query), zap.Error(err))
		h.editReply(s, i, "couldn't find anything for that")
		return
	}
	if shuffle {
		rand.Shuffle(len(entries), func(a, b int) { entries[a], entries[b] = entries[b], entries[a] })
	}

	added, err := h.queue.EnqueueMany(gid, entries)
	full := errors.Is(err, player.ErrQueueFull)
	if added == 0 {
		if full {
			h.editReply(s, i, "the queue is full")
		} else {
			h.editReply(s, i, "couldn't add that to the queue")
		}
		return
	}
	logger.Info("queued", zap.Int("added", added), zap.Int("requested", len(entries)))

	msg := addedMessage(entries[0], added, h.queue.Snapshot(gid).QueueLength, full)
	if skip && h.coord.Skip(gid) {
		msg += ", skipped the current track"
	} else {
		h.startPlayback(gid)
	}
	h.editReply(s, i, msg)
}

func (h *CommandHandler) startPlayback(gid player.GuildID) {
	go func() {
		if err := h.coord.Advance(h.ctx, gid); err != nil {
			h.logger.Debug("advance after enqueue", zap.Uint64("guildID", uint64(gid)), zap.Error(err))
		}
	}()
}

func addedMessage(first player.Entry, added, queueLen int, truncated bool) string {
	if added == 1 {
		return fmt.Sprintf("**%s** added to the queue (%s)", utils.EscapeMd(displayTitle(first)), position(queueLen))
	}
	msg := fmt.Sprintf("added %d tracks to the queue", added)
	if truncated {
		msg += " (queue is full, the rest were dropped)"
	}
	return msg
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.coord.Skip(guildIDOf(i)) {
		h.reply(s, i, "nothing is playing", true)
		return
	}
	h.logger.Info("cmd skip", zap.String("guildID", i.GuildID), zap.String("userID", userIDOf(i)))
	h.reply(s, i, "skipped", false)
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.coord.Stop(guildIDOf(i))
	h.logger.Info("cmd stop", zap.String("guildID", i.GuildID), zap.String("userID", userIDOf(i)))
	h.reply(s, i, "stopping", true)
}

func (h *CommandHandler) cmdDisconnect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h.voice.get(i.GuildID) == nil {
		h.reply(s, i, "not connected", true)
		return
	}
	h.coord.Disconnect(guildIDOf(i), func() { h.voice.leave(i.GuildID) })
	h.logger.Info("cmd disconnect", zap.String("guildID", i.GuildID), zap.String("userID", userIDOf(i)))
	h.reply(s, i, "bye", false)
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	snap := h.queue.Snapshot(guildIDOf(i))
	if snap.Current == nil {
		h.reply(s, i, "nothing is playing", true)
		return
	}
	h.reply(s, i, nowPlaying(snap, time.Now()), false)
}

func nowPlaying(snap player.Snapshot, now time.Time) string {
	t := snap.Current
	line := "**" + utils.EscapeMd(t.Title) + "**"
	if t.Author != "" {
		line += " by " + utils.EscapeMd(t.Author)
	}
	if snap.StartedAt.IsZero() {
		line += " `loading`"
	} else {
		line += " `" + progress(snap.Elapsed(now), t.Length) + "`"
	}
	if snap.RepeatMode != player.RepeatNone {
		line += " (repeat " + snap.RepeatMode.String() + ")"
	}
	if t.URL != "" {
		line += "\n<" + t.URL + ">"
	}
	return line
}

func progress(elapsed time.Duration, length int) string {
	pos := int(elapsed / time.Second)
	if length <= 0 {
		return utils.PrettyTime(pos)
	}
	pos = min(pos, length)
	return utils.PrettyTime(pos) + "/" + utils.PrettyTime(length)
}

func (h *CommandHandler) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	gid := guildIDOf(i)
	opts := optionsOf(i.ApplicationCommandData().Options)

	var mode player.RepeatMode
	if raw := opts.str("mode"); raw != "" {
		mode = player.ParseRepeatMode(raw)
		h.queue.SetRepeatMode(gid, mode)
	} else {
		mode = h.queue.CycleRepeatMode(gid)
	}
	h.logger.Info("cmd loop", zap.String("guildID", i.GuildID), zap.Stringer("mode", mode))
	h.reply(s, i, "repeat mode: **"+mode.String()+"**", false)
}
