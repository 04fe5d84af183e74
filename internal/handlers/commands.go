package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/autocomplete"
	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
)

type CommandHandler struct {
	cfg     *config.Config
	repo    *repository.Repo
	favs    *repository.FavoritesService
	queue   *player.QueueManager
	coord   *player.Coordinator
	res     Expander
	voice   *voicePool
	suggest *autocomplete.Suggester
	logger  *zap.Logger

	// bot lifetime, set by Bot.Run
	ctx context.Context
}

func NewCommandHandler(
	cfg *config.Config,
	repo *repository.Repo,
	favs *repository.FavoritesService,
	queue *player.QueueManager,
	coord *player.Coordinator,
	res Expander,
	voice *voicePool,
	logger *zap.Logger,
) *CommandHandler {
	return &CommandHandler{
		cfg: cfg, repo: repo, favs: favs, queue: queue, coord: coord,
		res: res, voice: voice, suggest: autocomplete.New(), logger: logger, ctx: context.Background(),
	}
}

func boolOpt(name, desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Name: name, Description: desc, Type: discordgo.ApplicationCommandOptionBoolean}
}

func commandList() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song (URL, playlist, Spotify link or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				boolOpt("shuffle", "shuffle additions"),
				boolOpt("skip", "skip current track"),
			},
		},
		{Name: "skip", Description: "skip to the next song"},
		{Name: "stop", Description: "stop playback and clear the queue"},
		{Name: "disconnect", Description: "stop and leave the voice channel"},
		{Name: "clear", Description: "clear the queue except the current song"},
		{Name: "now-playing", Description: "show the current song"},
		{Name: "shuffle", Description: "shuffle the queue"},
		{
			Name:        "queue",
			Description: "show the current queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of queue to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{
			Name:        "remove",
			Description: "remove a song from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position of the song to remove", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{
			Name:        "move",
			Description: "move songs within the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "from", Description: "position of the song to move", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				{Name: "to", Description: "position to move the song to", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{
			Name:        "loop",
			Description: "set the repeat mode, or cycle it when no mode is given",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "mode", Description: "repeat mode", Type: discordgo.ApplicationCommandOptionString,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "none", Value: "none"},
						{Name: "current", Value: "current"},
						{Name: "queue", Value: "queue"},
					},
				},
			},
		},
		{
			Name:        "favorites",
			Description: "Manage favorites",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "use", Description: "play a favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "favorite name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						boolOpt("shuffle", "shuffle"),
						boolOpt("skip", "skip current"),
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "list favorites"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "create", Description: "create favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "query", Description: "query", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "remove favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
			},
		},
		{
			Name:        "config",
			Description: "Configure bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "get", Description: "show settings"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-playlist-limit", Description: "set max playlist add", Options: []*discordgo.ApplicationCommandOption{
					{Name: "limit", Description: "max tracks", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-wait-after-queue-empties", Description: "time to wait before leaving VC", Options: []*discordgo.ApplicationCommandOption{
					{Name: "delay", Description: "seconds (0 never leave)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-leave-if-no-listeners", Description: "leave when no listeners", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-queue-add-response-hidden", Description: "ephemeral queue add responses", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-announce-tracks", Description: "announce each song as it starts", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-default-repeat", Description: "repeat mode when the bot joins", Options: []*discordgo.ApplicationCommandOption{
					{
						Name: "mode", Description: "repeat mode", Type: discordgo.ApplicationCommandOptionString, Required: true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "none", Value: "none"},
							{Name: "current", Value: "current"},
							{Name: "queue", Value: "queue"},
						},
					},
				}},
			},
		},
	}
}

// RegisterCommands installs the slash commands globally when guildID is
// empty, otherwise on that guild.
func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	cmds := commandList()
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
		return err
	}
	h.logger.Info("registered application commands",
		zap.String("guildID", guildID), zap.Int("count", len(cmds)), zap.Duration("took", time.Since(start)))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}
	var query string
	for _, opt := range data.Options {
		if opt.Focused {
			query = opt.StringValue()
			break
		}
	}

	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()
	choices, err := h.suggest.Choices(ctx, query, 10)
	if err != nil {
		h.logger.Debug("autocomplete suggestions", zap.String("guildID", i.GuildID), zap.Error(err))
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		h.logger.Debug("autocomplete respond", zap.Error(err))
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	h.logger.Debug("application command",
		zap.String("guildID", i.GuildID), zap.String("userID", userIDOf(i)), zap.String("command", data.Name))

	if i.GuildID == "" {
		h.reply(s, i, "commands only work in a server", true)
		return
	}

	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "disconnect":
		h.cmdDisconnect(s, i)
	case "clear":
		h.cmdClear(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "shuffle":
		h.cmdShuffle(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "remove":
		h.cmdRemove(s, i)
	case "move":
		h.cmdMove(s, i)
	case "loop":
		h.cmdLoop(s, i)
	case "favorites":
		h.cmdFavorites(s, i)
	case "config":
		h.cmdConfig(s, i)
	default:
		h.logger.Debug("unknown command", zap.String("name", data.Name))
	}
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	}); err != nil {
		h.logger.Warn("reply failed", zap.String("guildID", i.GuildID), zap.Error(err))
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}); err != nil {
		h.logger.Warn("defer reply failed", zap.String("guildID", i.GuildID), zap.Error(err))
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		h.logger.Warn("edit reply failed", zap.String("guildID", i.GuildID), zap.Error(err))
	}
}

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (m optionMap) str(name string) string {
	if o, ok := m[name]; ok {
		return o.StringValue()
	}
	return ""
}

func (m optionMap) intOr(name string, def int) int {
	if o, ok := m[name]; ok {
		return int(o.IntValue())
	}
	return def
}

func (m optionMap) flag(name string) bool {
	if o, ok := m[name]; ok {
		return o.BoolValue()
	}
	return false
}

func guildIDOf(i *discordgo.InteractionCreate) player.GuildID {
	id, _ := player.ParseGuildID(i.GuildID)
	return id
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// displayTitle strips the search prefix from placeholder entries.
func displayTitle(e player.Entry) string {
	t := e.Title()
	if !e.IsPending() {
		return t
	}
	if rest, ok := strings.CutPrefix(t, "ytsearch1:"); ok {
		t = strings.ReplaceAll(rest, `"`, "")
	}
	return t
}

func position(n int) string {
	return "#" + strconv.Itoa(n)
}
