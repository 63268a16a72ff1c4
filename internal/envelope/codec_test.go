package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsMissingKind(t *testing.T) {
	_, err := Parse([]byte(`{"from":"agent-a"}`), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMissingKind)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrInvalidFormat)
}

func TestParseRejectsOversized(t *testing.T) {
	big := make([]byte, 128)
	_, err := Parse(big, 64)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestParseRoundTrip(t *testing.T) {
	in := &Envelope{
		Protocol: "mew/v0.4",
		Kind:     KindChat,
		From:     "agent-a",
		Payload:  []byte(`{"text":"hi"}`),
	}
	b, err := Marshal(in)
	require.NoError(t, err)

	out, err := Parse(b, 0)
	require.NoError(t, err)
	assert.Equal(t, in.Kind, out.Kind)
	assert.Equal(t, in.From, out.From)

	var payload struct {
		Text string `json:"text"`
	}
	require.NoError(t, DecodePayload(out, &payload))
	assert.Equal(t, "hi", payload.Text)
}

func TestStampFillsIDAndOverwritesFrom(t *testing.T) {
	e := &Envelope{Kind: KindChat, From: "claimed-identity"}
	Stamp(e, "mew/v0.4", "authenticated-id", time.Now())

	assert.Equal(t, "mew/v0.4", e.Protocol)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "authenticated-id", e.From)
	assert.NotEmpty(t, e.Timestamp)
}

func TestStampPreservesExistingProtocolAndID(t *testing.T) {
	e := &Envelope{Protocol: "mew/v0.9", ID: "fixed-id", Kind: KindChat}
	Stamp(e, "mew/v0.4", "sender", time.Now())

	assert.Equal(t, "mew/v0.9", e.Protocol)
	assert.Equal(t, "fixed-id", e.ID)
}

func TestBroadcastAndAddressedTo(t *testing.T) {
	broadcast := &Envelope{Kind: KindChat}
	assert.True(t, broadcast.Broadcast())
	assert.False(t, broadcast.AddressedTo("agent-a"))

	targeted := &Envelope{Kind: KindChat, To: []string{"agent-a", "agent-b"}}
	assert.False(t, targeted.Broadcast())
	assert.True(t, targeted.AddressedTo("agent-b"))
	assert.False(t, targeted.AddressedTo("agent-c"))
}

func TestNewErrorBuildsSystemErrorEnvelope(t *testing.T) {
	e := NewError("mew/v0.4", "agent-a", ErrCapabilityViolation, "denied", "req-1")
	require.NotNil(t, e)
	assert.Equal(t, KindSystemError, e.Kind)
	assert.Equal(t, "system", e.From)
	assert.Equal(t, []string{"agent-a"}, e.To)

	var payload ErrorPayload
	require.NoError(t, DecodePayload(e, &payload))
	assert.Equal(t, ErrCapabilityViolation, payload.Error)
	assert.Equal(t, "req-1", payload.Related)
}

func TestIsSystemAndStreamKind(t *testing.T) {
	assert.True(t, IsSystemKind("system/welcome"))
	assert.False(t, IsSystemKind("chat"))
	assert.True(t, IsStreamKind("stream/data"))
	assert.False(t, IsStreamKind("stream"))
}
