package handlers

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/voice"
)

// voicePool tracks the bot's voice connection in each guild.
type voicePool struct {
	mu     sync.Mutex
	conns  map[string]*voice.Connection
	logger *zap.Logger
}

func newVoicePool(logger *zap.Logger) *voicePool {
	return &voicePool{conns: make(map[string]*voice.Connection), logger: logger}
}

// connect returns the guild's connection to channelID, joining if needed.
// joined reports whether a new connection was made.
func (p *voicePool) connect(s *discordgo.Session, guildID, channelID string) (conn *voice.Connection, joined bool, err error) {
	p.mu.Lock()
	old := p.conns[guildID]
	if old != nil && old.ChannelID == channelID && old.IsConnected() {
		p.mu.Unlock()
		return old, false, nil
	}
	delete(p.conns, guildID)
	p.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			p.logger.Debug("close previous voice connection", zap.String("guildID", guildID), zap.Error(err))
		}
	}

	conn, err = voice.Join(s, guildID, channelID, p.logger)
	if err != nil {
		return nil, false, err
	}

	p.mu.Lock()
	p.conns[guildID] = conn
	p.mu.Unlock()
	return conn, true, nil
}

func (p *voicePool) get(guildID string) *voice.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[guildID]
}

func (p *voicePool) leave(guildID string) {
	p.mu.Lock()
	conn := p.conns[guildID]
	delete(p.conns, guildID)
	p.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		p.logger.Warn("voice disconnect", zap.String("guildID", guildID), zap.Error(err))
	}
}

func (p *voicePool) closeAll() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	for _, id := range ids {
		p.leave(id)
	}
}

// listeners counts non-bot members in a voice channel.
func listeners(st *discordgo.State, guildID, channelID string) int {
	g, _ := st.Guild(guildID)
	if g == nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		m, _ := st.Member(guildID, vs.UserID)
		if m != nil && m.User != nil && !m.User.Bot {
			n++
		}
	}
	return n
}
