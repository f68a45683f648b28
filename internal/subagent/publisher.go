package subagent

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"sync"

	"github.com/jeanpaul/fleet/internal/types"
)

// publisher holds the observer channel and the fingerprint of the last
// snapshot sent to it.
type publisher struct {
	senderMu sync.Mutex
	tx       chan<- types.SubAgentsUpdate

	// mu is held while a snapshot is projected and sent, so snapshots reach
	// the observer in the order they were taken. Lock order: mu, then
	// Manager.mu.
	mu      sync.Mutex
	last    uint64
	emitted bool
}

func (p *publisher) setSender(tx chan<- types.SubAgentsUpdate) {
	p.senderMu.Lock()
	defer p.senderMu.Unlock()
	p.tx = tx
}

func (p *publisher) sender() chan<- types.SubAgentsUpdate {
	p.senderMu.Lock()
	defer p.senderMu.Unlock()
	return p.tx
}

// publish sends the current projection unless it matches the last one sent.
func (m *Manager) publish() {
	tx := m.pub.sender()
	if tx == nil {
		return
	}

	m.pub.mu.Lock()
	defer m.pub.mu.Unlock()

	update := m.projection()
	fp := fingerprint(update)
	if m.pub.emitted && fp == m.pub.last {
		return
	}
	m.pub.last = fp
	m.pub.emitted = true

	if !trySend(tx, update) {
		m.log.Debug("sub-agent update dropped", "agents", update.CreatedCount)
	}
}

// trySend never blocks. A full or closed channel reports false.
func trySend(tx chan<- types.SubAgentsUpdate, u types.SubAgentsUpdate) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case tx <- u:
		return true
	default:
		return false
	}
}

func (m *Manager) projection() types.SubAgentsUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := types.SubAgentsUpdate{
		CreatedCount: len(m.order),
		Agents:       make([]types.SubAgentUIItem, 0, len(m.order)),
	}
	for _, id := range m.order {
		e := m.entries[id]
		if e.status == types.StatusRunning {
			u.RunningCount++
		}
		s := summaryLocked(id, e)
		u.Agents = append(u.Agents, types.SubAgentUIItem{
			ID:                  id,
			Template:            s.Template,
			Title:               s.Title,
			Status:              s.Status,
			ToolUses:            s.ToolUses,
			TotalTokens:         s.TotalTokens,
			LastActivity:        s.LastActivity,
			Transcript:          e.transcript.snapshot(),
			TranscriptTruncated: e.transcript.truncated,
		})
	}
	return u
}

// fingerprint hashes every field of u in order. Strings are length-prefixed
// and optional values carry a presence byte, so distinct projections do not
// collide by concatenation.
func fingerprint(u types.SubAgentsUpdate) uint64 {
	w := fpWriter{h: fnv.New64a()}
	w.int(int64(u.CreatedCount))
	w.int(int64(u.RunningCount))
	w.int(int64(len(u.Agents)))
	for _, a := range u.Agents {
		w.str(a.ID)
		w.str(a.Template)
		w.str(a.Title)
		w.int(int64(a.Status))
		w.int(int64(a.ToolUses))
		if a.TotalTokens != nil {
			w.byte(1)
			w.int(*a.TotalTokens)
		} else {
			w.byte(0)
		}
		if a.LastActivity != nil {
			w.byte(1)
			w.int(int64(a.LastActivity.Kind))
			w.str(a.LastActivity.Label)
		} else {
			w.byte(0)
		}
		w.int(int64(len(a.Transcript)))
		for _, line := range a.Transcript {
			w.str(line)
		}
		if a.TranscriptTruncated {
			w.byte(1)
		} else {
			w.byte(0)
		}
	}
	return w.h.Sum64()
}

type fpWriter struct {
	h   hash.Hash64
	buf [binary.MaxVarintLen64]byte
}

func (w *fpWriter) byte(b byte) {
	w.buf[0] = b
	w.h.Write(w.buf[:1])
}

func (w *fpWriter) int(v int64) {
	n := binary.PutVarint(w.buf[:], v)
	w.h.Write(w.buf[:n])
}

func (w *fpWriter) str(s string) {
	w.int(int64(len(s)))
	w.h.Write([]byte(s))
}
