package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTooLarge is returned by Parse when the input exceeds the configured
// maximum envelope size.
var ErrTooLarge = errors.New("envelope: exceeds maximum size")

// Parse decodes a single inbound frame into an Envelope, rejecting frames
// larger than maxBytes (0 disables the check) and frames with no kind.
func Parse(data []byte, maxBytes int) (*Envelope, error) {
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, ErrTooLarge
	}
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrInvalidFormat, err)
	}
	if e.Kind == "" {
		return nil, errors.New(ErrMissingKind)
	}
	return &e, nil
}

// Marshal serializes an envelope for transport.
func Marshal(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals an envelope's payload into v.
func DecodePayload(e *Envelope, v any) error {
	if len(e.Payload) == 0 {
		return errors.New("envelope: empty payload")
	}
	return json.Unmarshal(e.Payload, v)
}
