// Package handlers wires the Discord gateway to the playback core.
package handlers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/notify"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
)

// Expander resolves tracks and expands a request into queue entries.
type Expander interface {
	player.Resolver
	Expand(ctx context.Context, query string, limit int) ([]player.Entry, error)
}

type Deps struct {
	Repo     *repository.Repo
	Registry *player.Registry
	Resolver Expander
	Metrics  *player.Metrics
	Logger   *zap.Logger
}

type Bot struct {
	cfg      *config.Config
	session  *discordgo.Session
	repo     *repository.Repo
	coord    *player.Coordinator
	notifier *notify.Notifier
	voice    *voicePool
	cmd      *CommandHandler
	logger   *zap.Logger
	ready    atomic.Bool
	// guild IDs whose commands are installed
	registered sync.Map
}

func NewBot(cfg *config.Config, d Deps) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b := &Bot{
		cfg:     cfg,
		session: dg,
		repo:    d.Repo,
		voice:   newVoicePool(d.Logger),
		logger:  d.Logger,
	}
	b.notifier = notify.New(dg, b.announceTracks, d.Logger)
	b.coord = player.NewCoordinator(d.Registry, d.Resolver, &idleWatcher{bot: b}, d.Metrics, d.Logger,
		player.CoordinatorOptions{
			ResolveTimeout:     cfg.ResolveTimeout,
			MaxResolveFailures: cfg.MaxResolveFailures,
			DisconnectDebounce: cfg.DisconnectDebounce,
		})
	queue := player.NewQueueManager(d.Registry, d.Metrics)
	b.cmd = NewCommandHandler(cfg, d.Repo, repository.NewFavoritesService(d.Repo), queue, b.coord, d.Resolver, b.voice, d.Logger)
	return b, nil
}

func (b *Bot) Coordinator() *player.Coordinator { return b.coord }

// Ready reports whether the gateway session is up.
func (b *Bot) Ready() bool { return b.ready.Load() }

func (b *Bot) Run(ctx context.Context) error {
	dg := b.session
	b.cmd.ctx = ctx

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.ready.Store(true)
		b.logger.Info("connected", zap.String("user", s.State.User.Username), zap.Int("guilds", len(r.Guilds)))
		b.updateStatus(s)
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				b.logger.Error("register global commands", zap.Error(err))
			}
			return
		}

		var wg sync.WaitGroup
		for _, g := range r.Guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				b.registerGuild(s, appID, guildID)
			}(g.ID)
		}
		wg.Wait()

		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			b.logger.Error("clear global commands", zap.Error(err))
		}
		b.logger.Info("registered commands on all guilds")
	})

	dg.AddHandler(func(s *discordgo.Session, _ *discordgo.Disconnect) {
		b.ready.Store(false)
	})
	dg.AddHandler(func(s *discordgo.Session, _ *discordgo.Resumed) {
		b.ready.Store(true)
	})

	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot || s.State.User == nil {
			return
		}
		b.registerGuild(s, s.State.User.ID, g.ID)
	})

	dg.AddHandler(b.cmd.HandleInteraction)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	<-ctx.Done()
	b.voice.closeAll()
	b.notifier.Wait()
	return dg.Close()
}

func (b *Bot) registerGuild(s *discordgo.Session, appID, guildID string) {
	if _, loaded := b.registered.LoadOrStore(guildID, struct{}{}); loaded {
		return
	}
	if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
		b.registered.Delete(guildID)
		b.logger.Error("register guild commands", zap.String("guildID", guildID), zap.Error(err))
	}
}

func (b *Bot) updateStatus(s *discordgo.Session) {
	data := discordgo.UpdateStatusData{Status: b.cfg.BotStatus}
	if b.cfg.BotActivity != "" {
		data.Activities = []*discordgo.Activity{{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening}}
	}
	if err := s.UpdateStatusComplex(data); err != nil {
		b.logger.Debug("update status", zap.Error(err))
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	conn := b.voice.get(vs.GuildID)
	if conn == nil {
		return
	}
	gid, err := player.ParseGuildID(vs.GuildID)
	if err != nil {
		return
	}

	// the bot itself was moved out or kicked
	if s.State.User != nil && vs.UserID == s.State.User.ID && vs.ChannelID == "" {
		b.coord.Disconnect(gid, func() { b.voice.leave(vs.GuildID) })
		return
	}

	set, err := b.repo.GetSettings(b.cmd.ctx, vs.GuildID)
	if err != nil || !set.LeaveIfNoListeners {
		return
	}
	channelID := conn.ChannelID
	if listeners(s.State, vs.GuildID, channelID) > 0 {
		// the timer slot is shared, so an idle guild gets its idle countdown back
		if b.idle(gid) {
			b.scheduleIdleLeave(gid, set)
			return
		}
		b.coord.ChannelOccupied(gid)
		return
	}
	b.logger.Debug("voice channel emptied", zap.String("guildID", vs.GuildID), zap.String("channelID", channelID))
	b.coord.ChannelEmptied(gid,
		func() bool { return listeners(s.State, vs.GuildID, channelID) == 0 },
		func() { b.voice.leave(vs.GuildID) },
	)
}

func (b *Bot) announceTracks(guildID string) bool {
	set, err := b.repo.GetSettings(context.Background(), guildID)
	if err != nil {
		return true
	}
	return set.AnnounceTracks
}

// idleWatcher forwards events to Discord and schedules the idle leave once
// a guild's queue runs out.
type idleWatcher struct {
	bot *Bot
}

func (w *idleWatcher) Notify(ev player.Event) {
	w.bot.notifier.Notify(ev)
	if ev.Kind != player.EventQueueExhausted {
		return
	}

	set, err := w.bot.repo.GetSettings(context.Background(), ev.GuildID.String())
	if err != nil {
		return
	}
	w.bot.scheduleIdleLeave(ev.GuildID, set)
}

func (b *Bot) idle(gid player.GuildID) bool {
	snap := b.cmd.queue.Snapshot(gid)
	return !snap.IsPlaying && snap.Current == nil && snap.QueueLength == 0
}

// scheduleIdleLeave leaves the voice channel once the guild has stayed idle
// for its configured wait.
func (b *Bot) scheduleIdleLeave(gid player.GuildID, set *repository.Settings) {
	if set.SecondsWaitAfterEmpty <= 0 {
		return
	}
	guildID := gid.String()
	b.coord.DisconnectAfter(gid, time.Duration(set.SecondsWaitAfterEmpty)*time.Second,
		func() bool { return b.idle(gid) },
		func() { b.voice.leave(guildID) },
	)
}
