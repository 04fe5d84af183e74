package player

import "sync"

// Registry maps guilds to their state. Entries are created lazily and
// live for the process lifetime; Reset swaps in a fresh state.
type Registry struct {
	mu         sync.Mutex
	states     map[GuildID]*GuildState
	queueCap   int
	historyCap int
}

func NewRegistry(queueCap, historyCap int) *Registry {
	return &Registry{
		states:     make(map[GuildID]*GuildState),
		queueCap:   queueCap,
		historyCap: historyCap,
	}
}

func (r *Registry) GetOrCreate(guildID GuildID) *GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[guildID]; ok {
		return st
	}
	st := NewGuildState(guildID, r.queueCap, r.historyCap)
	r.states[guildID] = st
	return st
}

// Peek returns the state without creating it.
func (r *Registry) Peek(guildID GuildID) *GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[guildID]
}

// Reset replaces the guild's state with an empty one and returns the new state.
func (r *Registry) Reset(guildID GuildID) *GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := NewGuildState(guildID, r.queueCap, r.historyCap)
	r.states[guildID] = st
	return st
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
