// Package indexdb maintains a queryable read-model of world events in
// sqlite. It is a secondary index fed by bus subscriptions; the JSONL
// journal remains the source of truth.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/events"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqTrade
	reqInteraction
)

type req struct {
	kind reqKind

	event       eventRow
	trade       tradeRow
	interaction interactionRow
}

type eventRow struct {
	ID        string
	Type      string
	Timestamp string
	RawJSON   string
}

type tradeRow struct {
	NPCID       int
	PlayerID    int
	TradeType   string
	Status      string
	Transaction int
	Error       string
	RawJSON     string
	RecordedAt  string
}

type interactionRow struct {
	NPCID      int
	PlayerID   int
	Count      int
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is enough for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS world_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_ts ON world_events(type, timestamp);`,
		`CREATE TABLE IF NOT EXISTS trades (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			npc_id INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			trade_type TEXT NOT NULL,
			status TEXT NOT NULL,
			transaction_total INTEGER NOT NULL,
			error TEXT,
			raw_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_npc ON trades(npc_id, seq);`,
		`CREATE TABLE IF NOT EXISTS interactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			npc_id INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			count INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_npc ON interactions(npc_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// HandleEvent is a bus subscriber: every event is indexed, and trade and
// interaction events additionally get typed rows.
func (s *SQLiteIndex) HandleEvent(ev events.Event) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.enqueue(req{kind: reqEvent, event: eventRow{
		ID:        ev.ID,
		Type:      ev.Type,
		Timestamp: ev.Timestamp.Format(time.RFC3339Nano),
		RawJSON:   string(raw),
	}})

	switch ev.Type {
	case protocol.EventTradeCompleted, protocol.EventTradeFailed:
		row := tradeRow{
			NPCID:      intField(ev.Data, "npc_id"),
			PlayerID:   intField(ev.Data, "player_id"),
			TradeType:  stringField(ev.Data, "trade_type"),
			Status:     protocol.StatusSuccess,
			RawJSON:    string(raw),
			RecordedAt: ev.Timestamp.Format(time.RFC3339Nano),
		}
		if ev.Type == protocol.EventTradeFailed {
			row.Status = protocol.StatusFailed
			row.Error = stringField(ev.Data, "error")
		} else {
			row.Transaction = intField(ev.Data, "transaction")
		}
		s.enqueue(req{kind: reqTrade, trade: row})
	case protocol.EventCharacterInteraction:
		s.enqueue(req{kind: reqInteraction, interaction: interactionRow{
			NPCID:      intField(ev.Data, "npc_id"),
			PlayerID:   intField(ev.Data, "player_id"),
			Count:      intField(ev.Data, "interaction_count"),
			RecordedAt: ev.Timestamp.Format(time.RFC3339Nano),
		}})
	}
	return nil
}

func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; the JSONL journal remains the
		// source of truth.
	}
}

func intField(data protocol.Event, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringField(data protocol.Event, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqEvent:
			_, _ = s.db.Exec(
				`INSERT OR IGNORE INTO world_events (id, type, timestamp, raw_json) VALUES (?, ?, ?, ?)`,
				r.event.ID, r.event.Type, r.event.Timestamp, r.event.RawJSON,
			)
		case reqTrade:
			_, _ = s.db.Exec(
				`INSERT INTO trades (npc_id, player_id, trade_type, status, transaction_total, error, raw_json, recorded_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.trade.NPCID, r.trade.PlayerID, r.trade.TradeType, r.trade.Status,
				r.trade.Transaction, r.trade.Error, r.trade.RawJSON, r.trade.RecordedAt,
			)
		case reqInteraction:
			_, _ = s.db.Exec(
				`INSERT INTO interactions (npc_id, player_id, count, recorded_at) VALUES (?, ?, ?, ?)`,
				r.interaction.NPCID, r.interaction.PlayerID, r.interaction.Count, r.interaction.RecordedAt,
			)
		}
	}
}

// TradeRecord is the query view over indexed trades.
type TradeRecord struct {
	NPCID       int
	PlayerID    int
	TradeType   string
	Status      string
	Transaction int
	Error       string
}

// RecentTrades returns up to limit indexed trades, newest first.
func (s *SQLiteIndex) RecentTrades(limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT npc_id, player_id, trade_type, status, transaction_total, COALESCE(error, '')
		 FROM trades ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TradeRecord
	for rows.Next() {
		var tr TradeRecord
		if err := rows.Scan(&tr.NPCID, &tr.PlayerID, &tr.TradeType, &tr.Status, &tr.Transaction, &tr.Error); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// EventCount reports indexed events, optionally filtered by type.
func (s *SQLiteIndex) EventCount(eventType string) (int, error) {
	var n int
	var err error
	if eventType == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM world_events`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM world_events WHERE type = ?`, eventType).Scan(&n)
	}
	return n, err
}
