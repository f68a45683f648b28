// Package history archives finished sub-agents in a BoltDB file so they can
// be listed after the process that ran them exits.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"github.com/jeanpaul/fleet/internal/types"
)

var (
	bucketRuns = []byte("runs")
	// bucketIDs maps a sub-agent id to its key in bucketRuns.
	bucketIDs = []byte("ids")
)

// Record is one archived sub-agent.
type Record struct {
	ID          string               `json:"id"`
	Template    string               `json:"template"`
	Title       string               `json:"title"`
	Status      types.SubAgentStatus `json:"status"`
	ToolUses    int                  `json:"tool_uses"`
	TotalTokens *int64               `json:"total_tokens,omitempty"`
	Result      *string              `json:"result,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// Store is a BoltDB-backed archive. It satisfies subagent.Recorder.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record archives a terminal snapshot. Keys sort by finish time. Recording
// an id again replaces its record and keeps the original finish time.
func (s *Store) Record(p types.SubAgentPoll) error {
	rec := Record{
		ID:          p.ID,
		Template:    p.Template,
		Title:       p.Title,
		Status:      p.Status,
		ToolUses:    p.ToolUses,
		TotalTokens: p.TotalTokens,
		Result:      p.Result,
		Warnings:    p.Warnings,
		FinishedAt:  s.now().UTC(),
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		runs, ids := tx.Bucket(bucketRuns), tx.Bucket(bucketIDs)
		if old := ids.Get([]byte(rec.ID)); old != nil {
			var prev Record
			if err := json.Unmarshal(runs.Get(old), &prev); err == nil {
				rec.FinishedAt = prev.FinishedAt
			}
			if err := runs.Delete(old); err != nil {
				return err
			}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		key := recordKey(rec)
		if err := runs.Put(key, data); err != nil {
			return err
		}
		return ids.Put([]byte(rec.ID), key)
	})
}

// List returns up to limit records, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(limit int) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal record %x: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return out, nil
}

func recordKey(r Record) []byte {
	key := make([]byte, 8, 8+len(r.ID))
	binary.BigEndian.PutUint64(key, uint64(r.FinishedAt.UnixNano()))
	return append(key, r.ID...)
}
