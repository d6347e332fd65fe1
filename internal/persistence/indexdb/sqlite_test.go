package indexdb

import (
	"path/filepath"
	"testing"
	"time"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/events"
)

func testEvent(id, typ string, data protocol.Event) events.Event {
	return events.Event{
		ID:        id,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.HandleEvent(testEvent("e1", protocol.EventTradeCompleted, protocol.Event{
		"npc_id": 1, "player_id": 100, "trade_type": "buy", "transaction": 20,
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := s.HandleEvent(testEvent("e2", protocol.EventTradeFailed, protocol.Event{
		"npc_id": 1, "player_id": 100, "trade_type": "sell", "error": "the player doesn't have Wood Shield to sell",
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := s.HandleEvent(testEvent("e3", protocol.EventCharacterInteraction, protocol.Event{
		"npc_id": 1, "player_id": 100, "interaction_count": 1,
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// Close drains the writer queue before the db handle goes away.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	n, err := s2.EventCount("")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 indexed events, got %d", n)
	}
	n, err = s2.EventCount(protocol.EventTradeCompleted)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("type filter wrong: %d", n)
	}

	trades, err := s2.RecentTrades(10)
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trade rows, got %d", len(trades))
	}
	// Newest first: the failed sell was indexed after the completed buy.
	if trades[0].Status != protocol.StatusFailed || trades[0].Error == "" {
		t.Fatalf("failed row wrong: %+v", trades[0])
	}
	if trades[1].Status != protocol.StatusSuccess || trades[1].Transaction != 20 {
		t.Fatalf("completed row wrong: %+v", trades[1])
	}
}

func TestDuplicateEventIDsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ev := testEvent("dup", protocol.EventTimeChanged, protocol.Event{"new_hour": 13})
	_ = s.HandleEvent(ev)
	_ = s.HandleEvent(ev)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	n, err := s2.EventCount(protocol.EventTimeChanged)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("duplicate id inserted twice: %d", n)
	}
}

func TestHandleEventAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.HandleEvent(testEvent("late", protocol.EventTimeChanged, nil)); err != nil {
		t.Fatalf("post-close handle should be a no-op, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
