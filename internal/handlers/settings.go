package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

func (h *CommandHandler) cmdFavorites(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	opts := optionsOf(sub.Options)
	logger := h.logger.With(zap.String("guildID", i.GuildID), zap.String("userID", userIDOf(i)))

	switch sub.Name {
	case "create":
		err := h.favs.Create(h.ctx, i.GuildID, userIDOf(i), opts.str("name"), opts.str("query"))
		switch {
		case errors.Is(err, repository.ErrDuplicateFavorite):
			h.reply(s, i, "a favorite with that name already exists", true)
		case errors.Is(err, repository.ErrInvalidFavorite):
			h.reply(s, i, "a favorite needs a name and a query", true)
		case err != nil:
			logger.Warn("favorite create failed", zap.Error(err))
			h.reply(s, i, "failed to create favorite", true)
		default:
			h.reply(s, i, "👍 favorite created", false)
		}
	case "remove":
		manager := i.Member != nil && i.Member.Permissions&discordgo.PermissionManageGuild != 0
		err := h.favs.Remove(h.ctx, i.GuildID, opts.str("name"), userIDOf(i), manager)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.reply(s, i, "no favorite with that name exists", true)
		case errors.Is(err, repository.ErrNotOwner):
			h.reply(s, i, "you can only remove your own favorites", true)
		case err != nil:
			logger.Warn("favorite remove failed", zap.Error(err))
			h.reply(s, i, "failed to remove favorite", true)
		default:
			h.reply(s, i, "👍 favorite removed", false)
		}
	case "list":
		items, err := h.favs.List(h.ctx, i.GuildID)
		if err != nil {
			logger.Warn("favorite list failed", zap.Error(err))
		}
		if len(items) == 0 {
			h.reply(s, i, "there aren't any favorites yet", false)
			return
		}
		var b strings.Builder
		for _, f := range items {
			fmt.Fprintf(&b, "• %s: %s (<@%s>)\n", utils.EscapeMd(f.Name), utils.EscapeMd(f.Query), f.Author)
		}
		h.reply(s, i, b.String(), false)
	case "use":
		f, err := h.favs.Use(h.ctx, i.GuildID, opts.str("name"))
		if err != nil {
			h.reply(s, i, "no favorite with that name exists", true)
			return
		}
		h.enqueue(s, i, f.Query, opts.flag("shuffle"), opts.flag("skip"))
	}
}

func settingsText(set *repository.Settings) string {
	wait := "never leave"
	if set.SecondsWaitAfterEmpty > 0 {
		wait = fmt.Sprintf("%ds", set.SecondsWaitAfterEmpty)
	}
	return fmt.Sprintf(
		"Config\n- Playlist Limit: %d\n- Wait before leaving after queue empty: %s\n- Leave if no listeners: %t\n- Announce tracks: %t\n- Add to queue responses ephemeral: %t\n- Default repeat: %s",
		set.PlaylistLimit, wait, set.LeaveIfNoListeners, set.AnnounceTracks, set.QAddEphemeral, set.DefaultRepeat,
	)
}

func (h *CommandHandler) cmdConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	set, err := h.repo.UpsertSettings(h.ctx, i.GuildID)
	if err != nil {
		h.logger.Error("load settings", zap.String("guildID", i.GuildID), zap.Error(err))
		h.reply(s, i, "failed to fetch config", true)
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	opts := optionsOf(sub.Options)
	switch sub.Name {
	case "get":
		h.reply(s, i, settingsText(set), false)
		return
	case "set-playlist-limit":
		limit := opts.intOr("limit", 0)
		if limit < 1 {
			h.reply(s, i, "invalid limit", true)
			return
		}
		set.PlaylistLimit = limit
	case "set-wait-after-queue-empties":
		delay := opts.intOr("delay", 0)
		if delay < 0 {
			h.reply(s, i, "invalid delay", true)
			return
		}
		set.SecondsWaitAfterEmpty = delay
	case "set-leave-if-no-listeners":
		set.LeaveIfNoListeners = opts.flag("value")
	case "set-queue-add-response-hidden":
		set.QAddEphemeral = opts.flag("value")
	case "set-announce-tracks":
		set.AnnounceTracks = opts.flag("value")
	case "set-default-repeat":
		set.DefaultRepeat = player.ParseRepeatMode(opts.str("mode"))
	default:
		return
	}

	if err := h.repo.UpdateSettings(h.ctx, set); err != nil {
		h.logger.Error("update settings", zap.String("guildID", i.GuildID), zap.Error(err))
		h.reply(s, i, "failed to save config", true)
		return
	}
	h.logger.Info("config updated", zap.String("guildID", i.GuildID), zap.String("key", sub.Name))
	h.reply(s, i, "👍 config updated", false)
}
