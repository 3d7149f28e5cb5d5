// Package store is the bot's durable key-value state: the trading
// switch, global and per-symbol risk dollars, journal notes and the
// signal-source history. Everything lives in a handful of JSON files
// under one data directory, cached in memory and written through
// synchronously on every mutation. There is a single writer, so no
// reconciliation logic exists.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"riskpilot/internal/logger"
)

const (
	settingsFile = "settings.json"
	riskFile     = "risk_data.json"
	commentsFile = "journal_comments.json"
	sourcesFile  = "sources_log.json"

	// Per-symbol source history is capped so the file never balloons.
	maxSourceEntries = 50
)

type settings struct {
	TradingEnabled *bool    `json:"trading_enabled,omitempty"`
	GlobalRisk     *float64 `json:"global_risk,omitempty"`
}

// SourceEntry records which channel a signal for a symbol came from and
// when. The short field names are the on-disk format.
type SourceEntry struct {
	TS  int64  `json:"ts"` // ms
	Src string `json:"src"`
}

// Store owns the data directory. All reads come from the in-memory
// cache; all writes update the cache and the file under one lock.
type Store struct {
	dir            string
	defaultRiskUSD float64

	mu       sync.RWMutex
	settings settings
	risk     map[string]float64
	comments map[string]string
	sources  map[string][]SourceEntry
}

// Open loads all state files from dir, creating the directory if
// needed. A missing file is a first run, not an error.
func Open(dir string, defaultRiskUSD float64) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	s := &Store{
		dir:            dir,
		defaultRiskUSD: defaultRiskUSD,
		risk:           make(map[string]float64),
		comments:       make(map[string]string),
		sources:        make(map[string][]SourceEntry),
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	logger.Infof("Store loaded from %s (%d symbol risks, %d sources)", dir, len(s.risk), len(s.sources))
	return s, nil
}

func (s *Store) loadAll() error {
	if err := s.loadFile(settingsFile, &s.settings); err != nil {
		return err
	}
	if err := s.loadFile(riskFile, &s.risk); err != nil {
		return err
	}
	if err := s.loadFile(commentsFile, &s.comments); err != nil {
		return err
	}
	return s.loadFile(sourcesFile, &s.sources)
}

// loadFile reads one JSON file into dst. Absent files leave dst at its
// zero value; a file that exists but fails to parse is an error, since
// silently discarding operator-edited state would be worse than
// refusing to start.
func (s *Store) loadFile(name string, dst any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("store: parse %s: %w", name, err)
	}
	return nil
}

// saveFile writes v as indented JSON via a temp file and rename, so a
// crash mid-write never leaves a truncated state file.
func (s *Store) saveFile(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %s: %w", name, err)
	}
	return nil
}

// TradingEnabled defaults to true when the settings file has never been
// written.
func (s *Store) TradingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.TradingEnabled == nil {
		return true
	}
	return *s.settings.TradingEnabled
}

func (s *Store) SetTradingEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.TradingEnabled = &enabled
	return s.saveFile(settingsFile, &s.settings)
}

// GlobalRisk is the default dollar risk per trade. Falls back to the
// configured default when the operator never set one.
func (s *Store) GlobalRisk() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.GlobalRisk == nil || *s.settings.GlobalRisk <= 0 {
		return s.defaultRiskUSD
	}
	return *s.settings.GlobalRisk
}

func (s *Store) SetGlobalRisk(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("store: global risk must be positive, got %v", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.GlobalRisk = &amount
	if err := s.saveFile(settingsFile, &s.settings); err != nil {
		return err
	}
	logger.Infof("Global risk updated to %.2f", amount)
	return nil
}

// RiskForSymbol returns the dollar risk recorded when the trade was
// opened. The second return is false when no record exists; callers
// that depend on the risk figure must skip the symbol in that case
// rather than assume a default.
func (s *Store) RiskForSymbol(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.risk[symbol]
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// SetRiskForSymbol records the risk taken on a symbol at trade-open
// time.
func (s *Store) SetRiskForSymbol(symbol string, riskUSD float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risk[symbol] = riskUSD
	return s.saveFile(riskFile, s.risk)
}

// AddComment attaches a journal note to a symbol under today's date.
func (s *Store) AddComment(symbol, text string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[commentKey(symbol, now)] = text
	return s.saveFile(commentsFile, s.comments)
}

// CommentAt looks up the note filed on the day of the given trade
// timestamp. Empty string when none exists.
func (s *Store) CommentAt(symbol string, at time.Time) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.comments[commentKey(symbol, at)]
}

func commentKey(symbol string, at time.Time) string {
	return symbol + "_" + at.Format("2006-01-02")
}

// LogSource appends a source-history entry for the symbol, keeping only
// the most recent entries.
func (s *Store) LogSource(symbol, sourceTag string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.sources[symbol], SourceEntry{TS: now.UnixMilli(), Src: sourceTag})
	if len(entries) > maxSourceEntries {
		entries = entries[len(entries)-maxSourceEntries:]
	}
	s.sources[symbol] = entries
	return s.saveFile(sourcesFile, s.sources)
}

// SourceAtTime finds the source that was current when a trade closed:
// the newest entry logged strictly before the given time. "Unknown"
// when no entry qualifies.
func (s *Store) SourceAtTime(symbol string, before time.Time) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.sources[symbol]
	if len(history) == 0 {
		return "Unknown"
	}
	sorted := make([]SourceEntry, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TS > sorted[j].TS })
	cutoff := before.UnixMilli()
	for _, e := range sorted {
		if e.TS < cutoff {
			return e.Src
		}
	}
	return "Unknown"
}
