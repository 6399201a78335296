// Package idgen provides unique ID generation for pipeline events, trace
// lineages, and short human-facing identifiers such as alert IDs.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/google/uuid"
)

// Alphabet defines the character set used for the random portion of a
// short, prefixed ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated for a short ID
// (excluding the prefix).
var Length = 12

// NewEventID returns a new globally unique event_id. Event IDs are UUIDv4
// so that they remain unique across every stage's process and across
// broker redelivery, independent of any shared counter.
func NewEventID() string {
	return uuid.NewString()
}

// NewTraceID returns a new trace_id, minted once at the Gateway and copied
// unchanged by every downstream stage.
func NewTraceID() string {
	return uuid.NewString()
}

// NewAlertID returns a short, URL-safe alert_id, distinct from event_id.
func NewAlertID() (string, error) {
	return generateWithPrefix("alert-")
}

func generateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
