package player

import "math/rand/v2"

// QueueManager is the guild-agnostic set of queue edits used by commands.
// Every operation runs under the target guild's lock.
type QueueManager struct {
	reg     *Registry
	metrics *Metrics
}

func NewQueueManager(reg *Registry, metrics *Metrics) *QueueManager {
	return &QueueManager{reg: reg, metrics: metrics}
}

// Enqueue appends e and returns its 1-based position.
func (q *QueueManager) Enqueue(guildID GuildID, e Entry) (int, error) {
	st := q.reg.GetOrCreate(guildID)
	pos, err := st.AddTrack(e)
	if err != nil {
		q.metrics.queueRejected()
		return 0, err
	}
	q.metrics.setQueueLength(guildID, pos)
	return pos, nil
}

// EnqueueMany appends entries until the queue is full. It returns how many
// were added; err is ErrQueueFull when some did not fit.
func (q *QueueManager) EnqueueMany(guildID GuildID, entries []Entry) (int, error) {
	st := q.reg.GetOrCreate(guildID)
	st.mu.Lock()
	defer st.mu.Unlock()
	added := 0
	for _, e := range entries {
		if _, err := st.addLocked(e); err != nil {
			q.metrics.queueRejected()
			q.metrics.setQueueLength(guildID, len(st.pending))
			return added, err
		}
		added++
	}
	q.metrics.setQueueLength(guildID, len(st.pending))
	return added, nil
}

// DequeueAt removes the entry at the 0-based index. ok is false when the
// index is out of range.
func (q *QueueManager) DequeueAt(guildID GuildID, index int) (e Entry, ok bool) {
	st := q.reg.GetOrCreate(guildID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if index < 0 || index >= len(st.pending) {
		return Entry{}, false
	}
	e = st.pending[index]
	st.pending = append(st.pending[:index], st.pending[index+1:]...)
	q.metrics.setQueueLength(guildID, len(st.pending))
	return e, true
}

// Move relocates the entry at from so it ends up at index to. Both are
// 0-based; out-of-range indexes leave the queue untouched.
func (q *QueueManager) Move(guildID GuildID, from, to int) bool {
	st := q.reg.GetOrCreate(guildID)
	st.mu.Lock()
	defer st.mu.Unlock()
	n := len(st.pending)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}
	item := st.pending[from]
	st.pending = append(st.pending[:from], st.pending[from+1:]...)
	st.pending = append(st.pending[:to], append([]Entry{item}, st.pending[to:]...)...)
	return true
}

// Shuffle permutes the pending queue uniformly. The current track is not
// touched. Returns false when there are fewer than two entries.
func (q *QueueManager) Shuffle(guildID GuildID) bool {
	st := q.reg.GetOrCreate(guildID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.pending) < 2 {
		return false
	}
	rand.Shuffle(len(st.pending), func(i, j int) {
		st.pending[i], st.pending[j] = st.pending[j], st.pending[i]
	})
	return true
}

func (q *QueueManager) Snapshot(guildID GuildID) Snapshot {
	return q.reg.GetOrCreate(guildID).Snapshot()
}

// Clear empties the pending queue and history, keeping the current track.
func (q *QueueManager) Clear(guildID GuildID) {
	q.reg.GetOrCreate(guildID).ClearQueue()
	q.metrics.setQueueLength(guildID, 0)
}

func (q *QueueManager) SetRepeatMode(guildID GuildID, m RepeatMode) {
	q.reg.GetOrCreate(guildID).SetRepeatMode(m)
}

func (q *QueueManager) CycleRepeatMode(guildID GuildID) RepeatMode {
	return q.reg.GetOrCreate(guildID).CycleRepeatMode()
}
