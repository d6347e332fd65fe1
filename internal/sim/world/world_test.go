package world

import (
	"path/filepath"
	"testing"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/catalogs"
	"embervale.ai/internal/sim/entity"
	"embervale.ai/internal/sim/tuning"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cats, err := catalogs.New([]catalogs.ItemDef{
		{ID: 1, Name: "Gold Coin", Type: "currency", Tradable: true, Price: 1},
		{ID: 2, Name: "Health Potion", Type: "consumable", Tradable: true, Price: 10},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg, err := tuning.Load("")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	w := New(cfg, cats, nil)

	npc, err := entity.NewNPC(entity.CharacterConfig{
		ID: 1, Name: "Aldric", Role: "Merchant",
		Attributes: entity.Attributes{Level: 8, Health: 100, Relationship: 0.25},
		Inventory:  []map[string]int{{"Health Potion": 3}, {"Gold Coin": 100}},
	}, cats, nil)
	if err != nil {
		t.Fatalf("npc: %v", err)
	}
	player, err := entity.NewPlayer(entity.CharacterConfig{
		ID: 100, Name: "Rowan", Role: "Warrior",
		Inventory: []map[string]int{{"Gold Coin": 50}},
	}, cats, nil)
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	w.RegisterNPC(npc)
	w.RegisterPlayer(player)
	return w
}

func TestLoadCharactersFromSampleConfigs(t *testing.T) {
	root := filepath.Join("..", "..", "..", "configs")
	cats, err := catalogs.Load(root)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	cfg, err := tuning.Load(filepath.Join(root, "tuning.yaml"))
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	w := New(cfg, cats, nil)
	if err := w.LoadCharacters(filepath.Join(root, "characters")); err != nil {
		t.Fatalf("load characters: %v", err)
	}
	npc := w.GetNPCByName("Aldric")
	if npc == nil {
		t.Fatalf("sample merchant not loaded")
	}
	if npc.FindItemByName("Gold Coin") == nil {
		t.Fatalf("merchant inventory not resolved against catalog")
	}
	if w.GetPlayerByID(100) == nil {
		t.Fatalf("sample player not loaded")
	}
	// Registration seeds behavioral state for every NPC.
	if w.State().NPCCount() == 0 {
		t.Fatalf("NPC state not initialized on load")
	}
}

func TestStartAndUpdateLifecycle(t *testing.T) {
	w := newTestWorld(t)

	// Updates before Start are ignored.
	w.Update(3600)
	if got := w.State().Time.Hour; got != 12 {
		t.Fatalf("clock moved before start: %d", got)
	}

	w.Start()
	if got := len(w.Bus().History(protocol.EventGameInitialized, 0)); got != 1 {
		t.Fatalf("expected game-initialized event, got %d", got)
	}

	w.Update(3600) // one game hour at the default 1.0 scale
	if got := w.State().Time.Hour; got != 13 {
		t.Fatalf("expected hour 13, got %d", got)
	}
}

func TestProcessTradeEndToEnd(t *testing.T) {
	w := newTestWorld(t)
	w.Start()

	res := w.ProcessTrade(protocol.TradeProposal{
		TradeType: "buy",
		Items:     []map[string]int{{"Health Potion": 2}},
		NPCID:     1,
		PlayerID:  100,
	})
	if res.Status != protocol.StatusSuccess || res.Transaction != 20 {
		t.Fatalf("trade failed: %+v", res)
	}
	if got := w.GetNPCByID(1).FindItemByName("Health Potion").Quantity; got != 1 {
		t.Fatalf("NPC potions: %d", got)
	}
	if got := w.GetPlayerByID(100).FindItemByName("Gold Coin").Quantity; got != 30 {
		t.Fatalf("player gold: %d", got)
	}
	if got := len(w.Bus().History(protocol.EventTradeCompleted, 0)); got != 1 {
		t.Fatalf("expected trade-completed event, got %d", got)
	}
}

func TestProcessTradeRejectionEmitsFailed(t *testing.T) {
	w := newTestWorld(t)
	w.Start()

	res := w.ProcessTrade(protocol.TradeProposal{
		TradeType: "buy",
		Items:     []map[string]int{{"Health Potion": 99}},
		NPCID:     1,
		PlayerID:  100,
	})
	if res.Status != protocol.StatusFailed {
		t.Fatalf("expected failure: %+v", res)
	}
	if got := len(w.Bus().History(protocol.EventTradeFailed, 0)); got != 1 {
		t.Fatalf("expected trade-failed event, got %d", got)
	}
}

func TestLookupByIDAndName(t *testing.T) {
	w := newTestWorld(t)
	if w.GetNPCByID(1) == nil || w.GetNPCByID(2) != nil {
		t.Fatalf("NPC lookup wrong")
	}
	if w.GetPlayerByID(100) == nil || w.GetPlayerByID(1) != nil {
		t.Fatalf("player lookup wrong")
	}
	if w.GetNPCByName("aldric") == nil {
		t.Fatalf("name lookup should be case-insensitive")
	}
	if w.GetNPCByName("Nobody") != nil {
		t.Fatalf("unexpected name hit")
	}
}

func TestShutdownClearsHistory(t *testing.T) {
	w := newTestWorld(t)
	w.Start()
	w.RecordInteraction(1, 100)
	if w.Bus().HistoryLen() == 0 {
		t.Fatalf("expected history before shutdown")
	}

	w.Shutdown()
	if w.Bus().HistoryLen() != 0 {
		t.Fatalf("history not cleared on shutdown")
	}

	// Updates stop after shutdown; a second shutdown is a no-op.
	hour := w.State().Time.Hour
	w.Update(3600)
	if w.State().Time.Hour != hour {
		t.Fatalf("clock moved after shutdown")
	}
	w.Shutdown()
}

func TestWorldContextAndStats(t *testing.T) {
	w := newTestWorld(t)
	w.Start()

	ctx := w.WorldContext()
	if _, ok := ctx["time"].(map[string]any); !ok {
		t.Fatalf("missing time block: %v", ctx)
	}

	stats := w.Stats()
	chars, ok := stats["characters"].(map[string]any)
	if !ok || chars["loaded_npcs"] != 1 || chars["loaded_players"] != 1 {
		t.Fatalf("character stats wrong: %v", stats)
	}
	engine, ok := stats["engine"].(map[string]any)
	if !ok || engine["is_running"] != true {
		t.Fatalf("engine stats wrong: %v", stats)
	}
}

func TestCharactersDataCarriesNPCRelationship(t *testing.T) {
	w := newTestWorld(t)

	var npcView map[string]any
	for _, data := range w.CharactersData() {
		if data["name"] == "Aldric" {
			npcView = data
		}
	}
	if npcView == nil {
		t.Fatalf("NPC missing from characters data")
	}
	stats, ok := npcView["stats"].(map[string]any)
	if !ok || stats["relationship"] != 0.25 {
		t.Fatalf("NPC view misses relationship: %v", npcView["stats"])
	}

	// Player views keep the base stats shape.
	for _, data := range w.CharactersData() {
		if data["name"] != "Rowan" {
			continue
		}
		stats, ok := data["stats"].(map[string]any)
		if !ok {
			t.Fatalf("player stats wrong: %v", data)
		}
		if _, has := stats["relationship"]; has {
			t.Fatalf("player view should not carry relationship: %v", stats)
		}
	}
}

func TestUpdateNPCActivityForwarded(t *testing.T) {
	w := newTestWorld(t)
	w.Start()

	w.UpdateNPCActivity(1, "trading", map[string]any{"stall": "market"})
	st := w.State().GetNPCState(1)
	if st.Activity != "trading" || st.BehaviorData["stall"] != "market" {
		t.Fatalf("activity not applied: %+v", st)
	}
	if got := len(w.Bus().History(protocol.EventNPCBehaviorChanged, 0)); got != 1 {
		t.Fatalf("expected behavior event, got %d", got)
	}
}
