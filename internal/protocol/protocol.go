package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

const Version = "1.0"

// Message types on the observer feed.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeEvent   = "EVENT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// NewID generates a unique identifier for event and trade records.
func NewID() string {
	return uuid.NewString()
}
