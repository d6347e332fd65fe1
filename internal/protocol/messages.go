package protocol

// TradeProposal is the inbound boundary value handed over by the agent/tool
// layer: a proposed exchange from the player's perspective.
type TradeProposal struct {
	TradeType string           `json:"trade_type"` // "buy" or "sell"
	Items     []map[string]int `json:"items"`      // [{"Health Potion": 2}, ...]
	NPCID     int              `json:"npc_id"`
	PlayerID  int              `json:"player_id"`
}

// TradeResult is the exact shape other layers parse: numeric transaction
// total, empty items on failure.
type TradeResult struct {
	Status       string           `json:"status"` // "success" or "failed"
	Items        []map[string]int `json:"items"`
	Transaction  int              `json:"transaction"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// HELLO (observer -> server)
type HelloMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ObserverName    string   `json:"observer_name,omitempty"`
	Events          []string `json:"events,omitempty"` // empty = all event types
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ObserverID      string         `json:"observer_id"`
	WorldContext    map[string]any `json:"world_context,omitempty"`
}

// EVENT (server -> observer)
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EventID         string `json:"event_id"`
	EventType       string `json:"event_type"`
	Timestamp       string `json:"timestamp"`
	Data            Event  `json:"data"`
}

// ErrorMsg reports an API-level failure with a known code.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
