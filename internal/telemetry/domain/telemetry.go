package domain

import (
	"encoding/json"
	"time"
)

// Event is one security/operational telemetry event. Serialized as JSON on
// the wire (Kafka, Loki); field names are part of the pipeline contract.
//
// Metadata must never contain raw session secrets.
type Event struct {
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	GuildID   string          `json:"guildId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Event types emitted by the access control core.
const (
	EventSessionCreated = "session_created"
	EventSessionRotated = "session_rotated"
	EventSessionRevoked = "session_revoked"
	EventReplayDetected = "replay_detected"
	EventGRPCRequest    = "grpc_request"
)
