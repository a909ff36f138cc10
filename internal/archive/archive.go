// Package archive records the API responses of a run into a zstd-compressed
// capture file and replays them, so a snapshot can be rebuilt offline.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/pable/go-cr-meta/internal/model"
)

// FormatVersion is written into every capture.
const FormatVersion = 1

// ErrNotRecorded is returned on replay for a tag the capture has no log for.
var ErrNotRecorded = errors.New("battle log not recorded")

// Capture is the content of one capture file.
type Capture struct {
	Version    int                          `json:"version"`
	RunID      string                       `json:"run_id,omitempty"`
	RecordedAt time.Time                    `json:"recorded_at"`
	Players    []model.Player               `json:"players"`
	BattleLogs map[string][]model.RawBattle `json:"battle_logs"`
}

// Source is the pair of endpoints a run reads from.
type Source interface {
	TopPlayers(ctx context.Context, limit int) ([]model.Player, error)
	BattleLog(ctx context.Context, tag string) ([]model.RawBattle, error)
}

// Recorder passes calls through to a Source and keeps every successful response.
type Recorder struct {
	next Source

	mu      sync.Mutex
	capture Capture
}

// NewRecorder wraps next.
func NewRecorder(next Source, runID string) *Recorder {
	return &Recorder{
		next: next,
		capture: Capture{
			Version:    FormatVersion,
			RunID:      runID,
			BattleLogs: make(map[string][]model.RawBattle),
		},
	}
}

// TopPlayers fetches and records the leaderboard.
func (r *Recorder) TopPlayers(ctx context.Context, limit int) ([]model.Player, error) {
	players, err := r.next.TopPlayers(ctx, limit)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.capture.Players = players
	r.mu.Unlock()
	return players, nil
}

// BattleLog fetches and records one battle log.
func (r *Recorder) BattleLog(ctx context.Context, tag string) ([]model.RawBattle, error) {
	battles, err := r.next.BattleLog(ctx, tag)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.capture.BattleLogs[tag] = battles
	r.mu.Unlock()
	return battles, nil
}

// Capture returns what has been recorded so far.
func (r *Recorder) Capture() *Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.capture
	c.RecordedAt = time.Now().UTC()
	return &c
}

// Write encodes c as zstd-compressed JSON.
func Write(w io.Writer, c *Capture) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(c); err != nil {
		enc.Close()
		return fmt.Errorf("encode capture: %w", err)
	}
	return enc.Close()
}

// Read decodes a capture written by Write.
func Read(r io.Reader) (*Capture, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer dec.Close()

	var c Capture
	if err := json.NewDecoder(dec).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	if c.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported capture version %d", c.Version)
	}
	if c.BattleLogs == nil {
		c.BattleLogs = make(map[string][]model.RawBattle)
	}
	return &c, nil
}

// Save writes c to path.
func Save(path string, c *Capture) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}
	if err := Write(f, c); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Load reads a capture from path.
func Load(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Replay serves a capture as a Source.
type Replay struct {
	c *Capture
}

// NewReplay returns a Source backed by c.
func NewReplay(c *Capture) *Replay {
	return &Replay{c: c}
}

// TopPlayers returns the recorded leaderboard, cut to limit.
func (r *Replay) TopPlayers(_ context.Context, limit int) ([]model.Player, error) {
	players := r.c.Players
	if limit >= 0 && len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

// BattleLog returns the recorded log for tag.
func (r *Replay) BattleLog(_ context.Context, tag string) ([]model.RawBattle, error) {
	battles, ok := r.c.BattleLogs[tag]
	if !ok {
		return nil, fmt.Errorf("%s: %w", tag, ErrNotRecorded)
	}
	return battles, nil
}
