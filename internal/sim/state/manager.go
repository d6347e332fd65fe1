// Package state owns the world clock, per-NPC behavioral state and the trade
// dispatch entry point. All mutation happens synchronously within one call.
package state

import (
	"fmt"
	"log"
	"time"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/events"
	"embervale.ai/internal/sim/trade"
)

// NPCState tracks per-NPC behavior. Created lazily on first reference and
// never destroyed.
type NPCState struct {
	Mood             float64        `json:"mood"` // clamped to [-1,1]
	Activity         string         `json:"activity"`
	LastInteraction  time.Time      `json:"last_interaction"`
	InteractionCount int            `json:"interaction_count"`
	BehaviorData     map[string]any `json:"behavior_data"`
}

// Manager drives the clock, drifts NPC mood, and turns trade proposals into
// committed or rejected transactions, publishing events for every outcome.
type Manager struct {
	bus *events.Bus
	log *log.Logger

	Time      TimeState
	MoodDrift float64

	npcStates map[int]*NPCState
	startedAt time.Time
}

func NewManager(bus *events.Bus, logger *log.Logger) *Manager {
	return &Manager{
		bus:       bus,
		log:       logger,
		Time:      TimeState{Hour: 12, Day: 1, TimeScale: 1.0},
		MoodDrift: 0.1,
		npcStates: make(map[int]*NPCState),
		startedAt: time.Now().UTC(),
	}
}

// Update advances the clock by deltaSeconds of real time and drifts NPC mood.
// The mood pass runs every call regardless of whether the clock rolled over.
func (m *Manager) Update(deltaSeconds float64) {
	m.updateClock(deltaSeconds)
	m.driftMoods()
}

func (m *Manager) updateClock(deltaSeconds float64) {
	gameMinutes := int(deltaSeconds * m.Time.TimeScale / 60)
	oldHour, oldDay := m.Time.Hour, m.Time.Day
	m.Time.advance(gameMinutes)
	if m.Time.Hour != oldHour || m.Time.Day != oldDay {
		m.bus.Emit(protocol.EventTimeChanged, protocol.Event{
			"old_hour":    oldHour,
			"new_hour":    m.Time.Hour,
			"old_day":     oldDay,
			"new_day":     m.Time.Day,
			"time_period": m.Time.Period(),
			"is_day_time": m.Time.IsDayTime(),
		})
	}
}

func (m *Manager) driftMoods() {
	drift := m.MoodDrift
	if !m.Time.IsDayTime() {
		drift = -drift
	}
	for _, st := range m.npcStates {
		st.Mood = clamp(st.Mood+drift, -1.0, 1.0)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetNPCState returns the NPC's behavioral state, creating it on first
// reference.
func (m *Manager) GetNPCState(npcID int) *NPCState {
	st, ok := m.npcStates[npcID]
	if !ok {
		st = &NPCState{Activity: "idle", BehaviorData: make(map[string]any)}
		m.npcStates[npcID] = st
	}
	return st
}

// NPCCount reports how many NPC states exist.
func (m *Manager) NPCCount() int { return len(m.npcStates) }

// UpdateNPCActivity sets the activity label and merges behaviorData into the
// existing map (new keys overwrite, others are preserved). A behavior-changed
// event fires only when the label actually changed.
func (m *Manager) UpdateNPCActivity(npcID int, activity string, behaviorData map[string]any) {
	st := m.GetNPCState(npcID)
	oldActivity := st.Activity
	st.Activity = activity
	for k, v := range behaviorData {
		st.BehaviorData[k] = v
	}
	if oldActivity != activity {
		m.bus.Emit(protocol.EventNPCBehaviorChanged, protocol.Event{
			"npc_id":        npcID,
			"old_activity":  oldActivity,
			"new_activity":  activity,
			"behavior_data": behaviorData,
		})
	}
}

// UpdateRelationship announces a relationship delta between an NPC and a
// player.
func (m *Manager) UpdateRelationship(npcID, playerID int, change float64) {
	m.bus.Emit(protocol.EventRelationshipChanged, protocol.Event{
		"npc_id":    npcID,
		"player_id": playerID,
		"change":    change,
	})
}

// RecordInteraction stamps the NPC's last interaction and increments its
// monotonically increasing count.
func (m *Manager) RecordInteraction(npcID, playerID int) {
	st := m.GetNPCState(npcID)
	st.LastInteraction = time.Now().UTC()
	st.InteractionCount++
	m.bus.Emit(protocol.EventCharacterInteraction, protocol.Event{
		"npc_id":            npcID,
		"player_id":         playerID,
		"interaction_count": st.InteractionCount,
		"timestamp":         st.LastInteraction,
	})
}

// ProcessTrade runs the pipeline against entities resolved via lookup, marks
// the transaction processed, and emits trade-completed or trade-failed.
// Anything unexpected while interpreting the outcome becomes a trade-failed
// event rather than propagating.
func (m *Manager) ProcessTrade(tx *trade.Transaction, lookup trade.EntityLookup) (res protocol.TradeResult) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("processing error: %v", r)
			if m.log != nil {
				m.log.Printf("trade %s: %s", tx.ID, reason)
			}
			res = protocol.TradeResult{
				Status:       protocol.StatusFailed,
				Items:        []map[string]int{},
				ErrorMessage: reason,
			}
			m.emitTradeFailed(tx, reason)
		}
	}()

	if m.log != nil {
		m.log.Printf("processing trade: id=%s type=%s npc=%d player=%d", tx.ID, tx.TradeType, tx.NPCID, tx.PlayerID)
	}
	res = tx.Process(lookup, m.log)
	tx.Processed = true

	if res.Status == protocol.StatusSuccess {
		m.bus.Emit(protocol.EventTradeCompleted, protocol.Event{
			"npc_id":      tx.NPCID,
			"player_id":   tx.PlayerID,
			"trade_type":  tx.TradeType,
			"items":       res.Items,
			"transaction": res.Transaction,
		})
	} else {
		m.emitTradeFailed(tx, res.ErrorMessage)
	}
	return res
}

func (m *Manager) emitTradeFailed(tx *trade.Transaction, reason string) {
	if reason == "" {
		reason = "unknown error"
	}
	m.bus.Emit(protocol.EventTradeFailed, protocol.Event{
		"npc_id":     tx.NPCID,
		"player_id":  tx.PlayerID,
		"trade_type": tx.TradeType,
		"error":      reason,
	})
}

// WorldContext returns the time view external systems (agent prompts, API)
// consume.
func (m *Manager) WorldContext() map[string]any {
	return map[string]any{
		"time": map[string]any{
			"hour":        m.Time.Hour,
			"minute":      m.Time.Minute,
			"day":         m.Time.Day,
			"time_period": m.Time.Period(),
			"is_day_time": m.Time.IsDayTime(),
		},
	}
}

// Summary returns the compact state view for the API.
func (m *Manager) Summary() map[string]any {
	return map[string]any{
		"time":        m.Time.String(),
		"active_npcs": len(m.npcStates),
		"uptime":      time.Since(m.startedAt).String(),
	}
}
