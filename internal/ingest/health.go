package ingest

import "time"

// State is the connection state of an ingestion session
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "disconnected"
	}
}

// MarshalText renders the state by name in JSON output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Health tracks the session for status reporting. ReconnectCount counts
// established links that were lost; ConnectFailures counts dial attempts
// that never produced a link.
type Health struct {
	ClientID        string    `json:"client_id"`
	State           State     `json:"state"`
	ConnectedSince  time.Time `json:"connected_since,omitempty"`
	LastMessage     time.Time `json:"last_message,omitempty"`
	LastValue       float64   `json:"last_value"`
	LastError       string    `json:"last_error,omitempty"`
	ReconnectCount  int       `json:"reconnect_count"`
	ConnectFailures int       `json:"connect_failures"`
	MessageCount    int64     `json:"message_count"`
	ParseErrors     int64     `json:"parse_errors"`
	AlertsFired     int64     `json:"alerts_fired"`
}
