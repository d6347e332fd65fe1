package protocol

// Event is the free-form payload attached to a world event record.
type Event map[string]interface{}

// World event types published on the bus.
const (
	EventTimeChanged          = "time_changed"
	EventNPCBehaviorChanged   = "npc_behavior_changed"
	EventCharacterInteraction = "character_interaction"
	EventRelationshipChanged  = "relationship_changed"
	EventTradeCompleted       = "trade_completed"
	EventTradeFailed          = "trade_failed"
	EventGameInitialized      = "game_initialized"
	EventGameShutdown         = "game_shutdown"
)

// EventTypes returns every event type the world can emit, in a stable order.
// Subscribers that want the full stream (journal, index) register for each.
func EventTypes() []string {
	return []string{
		EventTimeChanged,
		EventNPCBehaviorChanged,
		EventCharacterInteraction,
		EventRelationshipChanged,
		EventTradeCompleted,
		EventTradeFailed,
		EventGameInitialized,
		EventGameShutdown,
	}
}
