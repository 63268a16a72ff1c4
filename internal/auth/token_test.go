package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	verifier := NewVerifier("test-secret", false)

	tok, err := issuer.Issue("agent-a", "space-1", []string{"chat"})
	require.NoError(t, err)

	id, err := verifier.VerifyToken(tok, "space-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "agent-a", id.ParticipantID)
	assert.Equal(t, []string{"chat"}, id.Capabilities)
}

func TestVerifyRejectsSpaceMismatch(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	verifier := NewVerifier("test-secret", false)

	tok, err := issuer.Issue("agent-a", "space-1", []string{"chat"})
	require.NoError(t, err)

	_, err = verifier.VerifyToken(tok, "space-2", nil)
	require.ErrorIs(t, err, ErrSpaceMismatch)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Hour)
	verifier := NewVerifier("secret-b", false)

	tok, err := issuer.Issue("agent-a", "space-1", []string{"chat"})
	require.NoError(t, err)

	_, err = verifier.VerifyToken(tok, "space-1", nil)
	require.Error(t, err)
}

func TestInsecureModeAcceptsLiteralIdentity(t *testing.T) {
	verifier := NewVerifier("", true)
	id, err := verifier.VerifyToken("agent-a", "space-1", []string{"chat", "mcp/response"})
	require.NoError(t, err)
	assert.Equal(t, "agent-a", id.ParticipantID)
	assert.Equal(t, []string{"chat", "mcp/response"}, id.Capabilities)
}

func TestVerifyFallsBackToDefaultCapabilities(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	verifier := NewVerifier("test-secret", false)

	tok, err := issuer.Issue("agent-a", "space-1", nil)
	require.NoError(t, err)

	id, err := verifier.VerifyToken(tok, "space-1", []string{"chat"})
	require.NoError(t, err)
	assert.Equal(t, []string{"chat"}, id.Capabilities)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	verifier := NewVerifier("test-secret", false)
	_, err := verifier.VerifyToken("  ", "space-1", nil)
	require.Error(t, err)
}
