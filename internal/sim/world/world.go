// Package world wires the simulation kernel together: it owns the event bus,
// the state manager and the loaded characters, and exposes the entry points
// the transport and agent boundaries call.
package world

import (
	"log"
	"strings"
	"sync"
	"time"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/catalogs"
	"embervale.ai/internal/sim/entity"
	"embervale.ai/internal/sim/events"
	"embervale.ai/internal/sim/state"
	"embervale.ai/internal/sim/trade"
	"embervale.ai/internal/sim/tuning"
)

type World struct {
	cfg  tuning.Tuning
	log  *log.Logger
	cats *catalogs.Catalogs

	// mu serializes all mutation; a trade commit never interleaves with an
	// update or another trade.
	mu      sync.Mutex
	bus     *events.Bus
	state   *state.Manager
	npcs    []*entity.NPC
	players []*entity.Player
	running bool
	started time.Time
}

func New(cfg tuning.Tuning, cats *catalogs.Catalogs, logger *log.Logger) *World {
	bus := events.NewBus(logger)
	bus.SetHistoryCap(cfg.EventHistoryCap)
	mgr := state.NewManager(bus, logger)
	mgr.Time = state.TimeState{Hour: cfg.StartHour, Day: cfg.StartDay, TimeScale: cfg.TimeScale}
	mgr.MoodDrift = cfg.MoodDriftStep
	return &World{
		cfg:   cfg,
		log:   logger,
		cats:  cats,
		bus:   bus,
		state: mgr,
	}
}

func (w *World) Bus() *events.Bus             { return w.bus }
func (w *World) State() *state.Manager        { return w.state }
func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }

// LoadCharacters populates the world from config records in dir.
func (w *World) LoadCharacters(dir string) error {
	npcs, players, err := entity.LoadCharacters(dir, w.cats, w.log)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, npc := range npcs {
		w.npcs = append(w.npcs, npc)
		w.state.GetNPCState(npc.ID)
	}
	w.players = append(w.players, players...)
	return nil
}

// RegisterNPC adds an NPC built elsewhere (tests, fixtures) and initializes
// its behavioral state.
func (w *World) RegisterNPC(npc *entity.NPC) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.npcs = append(w.npcs, npc)
	w.state.GetNPCState(npc.ID)
}

func (w *World) RegisterPlayer(p *entity.Player) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players = append(w.players, p)
}

// Start marks the world running and announces initialization.
func (w *World) Start() {
	w.mu.Lock()
	w.running = true
	w.started = time.Now().UTC()
	w.mu.Unlock()
	w.bus.Emit(protocol.EventGameInitialized, protocol.Event{
		"timestamp": time.Now().UTC(),
	})
	if w.log != nil {
		w.log.Printf("world started: %d NPCs, %d players, %d item defs", len(w.npcs), len(w.players), len(w.cats.Items.Names))
	}
}

// Update advances all world systems by deltaSeconds. No-op until Start.
func (w *World) Update(deltaSeconds float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.state.Update(deltaSeconds)
}

// Shutdown stops updates, announces shutdown and clears the event history.
func (w *World) Shutdown() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	uptime := time.Since(w.started)
	w.mu.Unlock()

	w.bus.Emit(protocol.EventGameShutdown, protocol.Event{
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
	})
	w.bus.ClearHistory()
	if w.log != nil {
		w.log.Printf("world shutdown complete, uptime %s", uptime)
	}
}

// GetNPCByID implements trade.EntityLookup.
func (w *World) GetNPCByID(id int) *entity.NPC {
	for _, npc := range w.npcs {
		if npc.ID == id {
			return npc
		}
	}
	return nil
}

// GetPlayerByID implements trade.EntityLookup.
func (w *World) GetPlayerByID(id int) *entity.Player {
	for _, p := range w.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (w *World) GetNPCByName(name string) *entity.NPC {
	for _, npc := range w.npcs {
		if strings.EqualFold(npc.Name, name) {
			return npc
		}
	}
	return nil
}

// ProcessTrade is the orchestration entry point for the agent/tool boundary.
func (w *World) ProcessTrade(p protocol.TradeProposal) protocol.TradeResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx := trade.FromProposal(p)
	return w.state.ProcessTrade(tx, w)
}

// UpdateNPCActivity forwards an activity change from external systems.
func (w *World) UpdateNPCActivity(npcID int, activity string, behaviorData map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.UpdateNPCActivity(npcID, activity, behaviorData)
}

// RecordInteraction forwards an interaction from external systems.
func (w *World) RecordInteraction(npcID, playerID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.RecordInteraction(npcID, playerID)
}

// WorldContext returns the time view for external consumers.
func (w *World) WorldContext() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.WorldContext()
}

// CharactersData returns API views of every loaded character.
func (w *World) CharactersData() []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]map[string]any, 0, len(w.npcs)+len(w.players))
	for _, npc := range w.npcs {
		out = append(out, npc.APIData())
	}
	for _, p := range w.players {
		out = append(out, p.APIData())
	}
	return out
}

// Stats returns the operational summary for the API.
func (w *World) Stats() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	uptime := "not started"
	if w.running {
		uptime = time.Since(w.started).String()
	}
	return map[string]any{
		"engine": map[string]any{
			"is_running": w.running,
			"uptime":     uptime,
		},
		"state": w.state.Summary(),
		"events": map[string]any{
			"total_events":    w.bus.HistoryLen(),
			"listener_counts": w.bus.ListenerCounts(),
		},
		"characters": map[string]any{
			"loaded_npcs":    len(w.npcs),
			"loaded_players": len(w.players),
			"active_states":  w.state.NPCCount(),
		},
	}
}
