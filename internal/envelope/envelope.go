// Package envelope defines the MEW wire message and its codec.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the single message shape exchanged over every transport.
// Protocol, ID and Timestamp are stamped by the gateway on ingress; From is
// overwritten with the authenticated sender identity regardless of what the
// client sent.
type Envelope struct {
	Protocol      string          `json:"protocol"`
	ID            string          `json:"id"`
	Timestamp     string          `json:"ts"`
	From          string          `json:"from"`
	To            []string        `json:"to,omitempty"`
	Kind          string          `json:"kind"`
	CorrelationID []string        `json:"correlation_id,omitempty"`
	Context       string          `json:"context,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Broadcast reports whether the envelope has no explicit addressee list,
// meaning it is delivered to every participant in the space.
func (e *Envelope) Broadcast() bool {
	return len(e.To) == 0
}

// AddressedTo reports whether id appears in the envelope's To list.
func (e *Envelope) AddressedTo(id string) bool {
	for _, t := range e.To {
		if t == id {
			return true
		}
	}
	return false
}

// Stamp fills in protocol and id when the sender omitted them, and always
// overwrites the timestamp with now and From with the authenticated sender
// id.
func Stamp(e *Envelope, protocol, senderID string, now time.Time) {
	if e.Protocol == "" {
		e.Protocol = protocol
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = now.UTC().Format(time.RFC3339Nano)
	e.From = senderID
}

// New builds a gateway-originated envelope (system/*, errors) with a fresh
// id and current timestamp.
func New(protocol, kind, from string, to []string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Protocol:  protocol,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		From:      from,
		To:        to,
		Kind:      kind,
		Payload:   raw,
	}, nil
}

// ErrorPayload is the payload shape for system/error envelopes.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Related string `json:"related_id,omitempty"`
}

// NewError builds a system/error envelope addressed to a single recipient.
func NewError(protocol, to, code, message, relatedID string) *Envelope {
	e, _ := New(protocol, KindSystemError, "system", []string{to}, ErrorPayload{
		Error:   code,
		Message: message,
		Related: relatedID,
	})
	return e
}
