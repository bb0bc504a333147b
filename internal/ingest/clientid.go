package ingest

import (
	"strings"

	"github.com/google/uuid"
)

// MQTT 3.1.1 servers are only required to accept 23 alphanumeric bytes.
const maxClientIDLength = 23

const clientIDPrefix = "cw"

// NewClientID returns a fresh alphanumeric client identifier
func NewClientID() string {
	id := clientIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:maxClientIDLength]
}
