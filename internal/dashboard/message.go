package dashboard

import "time"

// EventType identifies the kind of operational event carried by an Event.
type EventType string

const (
	// EventParticipantOnline fires on register and on reconnect.
	EventParticipantOnline EventType = "participant.online"
	// EventParticipantOffline fires on disconnect and on dispatch-failure
	// demotion.
	EventParticipantOffline EventType = "participant.offline"
	// EventParticipantGone fires on deregister.
	EventParticipantGone EventType = "participant.gone"
	// EventMulticastAccepted fires once per accepted multicast, before
	// dispatch.
	EventMulticastAccepted EventType = "multicast.accepted"
	// EventMulticastDelivered fires once per successful per-recipient
	// delivery.
	EventMulticastDelivered EventType = "multicast.delivered"
	// EventMulticastFailed fires once per failed per-recipient delivery.
	EventMulticastFailed EventType = "multicast.failed"
	// EventReplayed fires once per reconnect that replayed one or more
	// retained entries.
	EventReplayed EventType = "replay.delivered"
)

// Event is the envelope for every message pushed to dashboard observers.
type Event struct {
	Type          EventType `json:"type"`
	ParticipantID string    `json:"participant_id,omitempty"`
	SenderID      string    `json:"sender_id,omitempty"`
	Count         int       `json:"count,omitempty"`
	At            time.Time `json:"at"`
}
