// Package wire implements the JSON-over-TCP framing used between
// participants and the coordinator, and between the coordinator and a
// participant's receiver endpoint.
//
// Framing is intentionally primitive: each direction of each connection
// carries exactly one JSON object, written in a single Write and read with a
// single bounded Read. There is no length prefix — robustness is traded for
// wire compatibility with the reference implementation this protocol was
// distilled from (see spec §9 "Framing fragility").
package wire

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// MaxFrameSize is the largest payload this protocol ever reads or writes in
// a single frame.
const MaxFrameSize = 4096

// Command identifies the kind of request a participant sends to the
// coordinator's control port.
type Command string

const (
	CommandRegister   Command = "register"
	CommandDeregister Command = "deregister"
	CommandDisconnect Command = "disconnect"
	CommandReconnect  Command = "reconnect"
	CommandMulticast  Command = "msend"
)

// Request is the envelope for every participant → coordinator control
// message. Fields unused by a given command are left at their zero value.
type Request struct {
	Command       Command `json:"command"`
	ParticipantID string  `json:"participant_id"`
	IP            string  `json:"ip,omitempty"`
	Port          int     `json:"port,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Status values carried in a Reply.
const (
	StatusAck = "ack"
	StatusErr = "err"
)

// Reply is the coordinator → participant control response. Status is
// StatusAck for every well-formed request regardless of state-legality
// (see spec §9 "Ack semantics ambiguity" and DESIGN.md for the rationale);
// Reason is populated only when Status is StatusErr.
type Reply struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Delivery is the coordinator → participant-receiver multicast payload,
// opened as a fresh connection to the recipient's receiver endpoint for
// every delivery attempt.
type Delivery struct {
	Type      string  `json:"type"`
	SenderID  string  `json:"sender_id"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// NewDelivery builds a Delivery from a retained entry's sender, body, and
// acceptance instant.
func NewDelivery(senderID, body string, acceptedAt time.Time) Delivery {
	return Delivery{
		Type:      "multicast",
		SenderID:  senderID,
		Message:   body,
		Timestamp: float64(acceptedAt.UnixNano()) / float64(time.Second),
	}
}

// Time converts the delivery's wire timestamp back to a time.Time in UTC.
func (d Delivery) Time() time.Time {
	secs := int64(d.Timestamp)
	nanos := int64((d.Timestamp - float64(secs)) * float64(time.Second))
	return time.Unix(secs, nanos).UTC()
}

// ReadFrame reads at most MaxFrameSize bytes from conn in a single Read call
// and decodes them as JSON into v. It returns an error if the read fails or
// the bytes read do not form a valid JSON value — callers must treat both as
// a malformed request per spec §4.3/§7.
func ReadFrame(conn net.Conn, v any) error {
	buf := make([]byte, MaxFrameSize)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("wire: read frame: %w", err)
	}
	if err := json.Unmarshal(buf[:n], v); err != nil {
		return fmt.Errorf("wire: decode frame: %w", err)
	}
	return nil
}

// WriteFrame encodes v as JSON and writes it to conn in a single Write call.
// It returns an error if the encoded payload exceeds MaxFrameSize or the
// write fails.
func WriteFrame(conn net.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: encode frame: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds %d byte limit", len(data), MaxFrameSize)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}
