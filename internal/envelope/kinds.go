package envelope

// Kind constants for the envelope "kind" field. The gateway only inspects
// the kinds it must act on (system/*, stream/*, capability/*, mcp/proposal,
// and chat for its rate-limit lane); all other kinds, including the rest of
// the mcp/* family, are routed opaquely.
const (
	KindSystemWelcome   = "system/welcome"
	KindSystemPresence  = "system/presence"
	KindSystemError     = "system/error"
	KindSystemNotice    = "system/notice"
	KindSystemHeartbeat = "system/heartbeat"

	KindChat = "chat"

	KindMCPProposal = "mcp/proposal"
	KindMCPRequest  = "mcp/request"

	KindCapabilityGrant  = "capability/grant"
	KindCapabilityRevoke = "capability/revoke"

	KindStreamRequest = "stream/request"
	KindStreamOpen    = "stream/open"
	KindStreamData    = "stream/data"
	KindStreamClose   = "stream/close"
)

// Error codes used in system/error envelope payloads.
const (
	ErrInvalidFormat          = "invalid_format"
	ErrMissingKind            = "missing_kind"
	ErrAuthViolation          = "auth_violation"
	ErrCapabilityViolation    = "capability_violation"
	ErrUnknownRecipient       = "unknown_recipient"
	ErrRateLimited            = "rate_limited"
	ErrStreamSequenceViolation = "stream_sequence_violation"
	ErrDuplicateParticipant   = "duplicate_participant"
	ErrHandlerError           = "handler_error"
	ErrServerError            = "server_error"
)

// IsSystemKind reports whether kind belongs to the system/* family.
func IsSystemKind(kind string) bool {
	return len(kind) >= 7 && kind[:7] == "system/"
}

// IsStreamKind reports whether kind belongs to the stream/* family.
func IsStreamKind(kind string) bool {
	return len(kind) >= 7 && kind[:7] == "stream/"
}
