// Package space implements the "space owner" mediator: one mutex-guarded
// struct per space that serializes every mutation (join, leave, route,
// grant, propose, stream lifecycle), modeled on the teacher's
// StreamManager and topics/internal/store.Store, both of which serialize a
// per-resource map behind a single mutex rather than a message-passing
// actor.
package space

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mewprotocol/gateway/internal/envelope"
	"github.com/mewprotocol/gateway/internal/participant"
	"github.com/mewprotocol/gateway/internal/ratelimit"
)

// LoggerFn mirrors the teacher's lightweight logging-function-injection
// pattern so this package does not import internal/telemetry directly.
type LoggerFn func(level, msg string, fields map[string]any)

// HistorySink receives every envelope that is successfully routed, for
// on-disk persistence (see internal/logsink). It is optional.
type HistorySink interface {
	AppendEnvelope(spaceID string, e *envelope.Envelope)
	AppendDecision(spaceID string, participantID, kind string, allowed bool)
}

// MetricsSink receives counters for the /metrics endpoint. It is optional.
type MetricsSink interface {
	EnvelopeRouted(kind string)
	CapabilityDenied()
	RateLimited()
}

// Config bounds a space's resource usage.
type Config struct {
	Protocol             string
	HistoryCap           int
	MessagesPerMinute    int
	ChatPerMinute        int
	ProposalExpiry       time.Duration
	StreamInactivity     time.Duration
	GrantsPerParticipant int
	DefaultCapabilities  []string
}

// Space is one isolated MEW coordination context: a set of participants, a
// bounded history, active streams, and pending grants/proposals. All
// mutating and routing operations take the space's mutex internally.
type Space struct {
	ID     string
	cfg    Config
	logger LoggerFn
	hist   HistorySink
	metrics MetricsSink

	mu sync.Mutex

	registry   *participant.Registry
	limiter    *ratelimit.Limiter
	history    *ring
	streams    map[string]*stream
	proposals  map[string]*proposal
	grants     map[string]*grant
}

// New constructs an empty Space.
func New(id string, cfg Config, logger LoggerFn, hist HistorySink, metrics MetricsSink) *Space {
	if logger == nil {
		logger = func(string, string, map[string]any) {}
	}
	lim := ratelimit.New()
	lim.Configure("messages", cfg.MessagesPerMinute, 0)
	lim.Configure("chat", cfg.ChatPerMinute, 0)
	return &Space{
		ID:        id,
		cfg:       cfg,
		logger:    logger,
		hist:      hist,
		metrics:   metrics,
		registry:  participant.NewRegistry(),
		limiter:   lim,
		history:   newRing(cfg.HistoryCap),
		streams:   make(map[string]*stream),
		proposals: make(map[string]*proposal),
		grants:    make(map[string]*grant),
	}
}

// presencePayload is the system/presence payload shape for both join and
// leave events.
type presencePayload struct {
	Participant string `json:"participant"`
	Event       string `json:"event"`
}

// Join registers a participant (replacing a disconnected placeholder with
// the same id, if any) and returns the new participant together with the
// recent history for its system/welcome payload. It broadcasts
// system/presence join to every other participant.
func (s *Space) Join(id string, capabilities []string, sink participant.Sink) (*participant.Participant, []*envelope.Envelope, error) {
	p, err := participant.New(id, capabilities)
	if err != nil {
		return nil, nil, err
	}
	p.Attach(sink)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.registry.Add(p); err != nil {
		return nil, nil, err
	}
	recent := s.history.snapshot()
	s.notifyOthersLocked(id, envelope.KindSystemPresence, presencePayload{Participant: id, Event: "join"})
	s.logger("info", "participant_joined", map[string]any{"space": s.ID, "participant": id})
	return p, recent, nil
}

// Leave removes a participant, closes its sink, revokes capabilities it
// granted to others, cancels its pending proposals and grants, and
// broadcasts system/presence leave to the remaining participants.
func (s *Space) Leave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.registry.Get(id); ok {
		if sink := p.Detach(); sink != nil {
			_ = sink.Close()
		}
	}
	s.registry.Remove(id)
	s.limiter.Forget(id)

	for _, other := range s.registry.All() {
		_ = other.Revoke(id, s.cfg.DefaultCapabilities)
	}
	for gid, g := range s.grants {
		if g.GrantorID == id {
			delete(s.grants, gid)
		}
	}
	for pid, pr := range s.proposals {
		if pr.ProposerID == id {
			delete(s.proposals, pid)
		}
	}
	s.notifyOthersLocked("", envelope.KindSystemPresence, presencePayload{Participant: id, Event: "leave"})
	s.logger("info", "participant_left", map[string]any{"space": s.ID, "participant": id})
}

// notifyOthersLocked sends a gateway-originated envelope to every currently
// registered participant except excludeID (pass "" to address everyone
// remaining). Called with the space mutex already held.
func (s *Space) notifyOthersLocked(excludeID, kind string, payload any) {
	all := s.registry.All()
	to := make([]string, 0, len(all))
	for _, p := range all {
		if p.ID != excludeID {
			to = append(to, p.ID)
		}
	}
	if len(to) == 0 {
		return
	}
	s.sendSystemLocked(kind, to, payload)
}

// Participant returns the participant with id, if present.
func (s *Space) Participant(id string) (*participant.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Get(id)
}

// GetOrCreateParticipant returns an existing participant or registers a
// disconnected placeholder for id with the default capability set.
func (s *Space) GetOrCreateParticipant(id string) (*participant.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.GetOrCreate(id, s.cfg.DefaultCapabilities)
}

// Roster returns a snapshot of participant ids currently in the space.
func (s *Space) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.registry.All()
	ids := make([]string, len(all))
	for i, p := range all {
		ids[i] = p.ID
	}
	return ids
}

// ParticipantInfo is the shape of one participant entry in a system/welcome
// payload.
type ParticipantInfo struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// Participants returns a snapshot of every participant's id and effective
// capabilities, for system/welcome payloads.
func (s *Space) Participants() []ParticipantInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.registry.All()
	out := make([]ParticipantInfo, len(all))
	for i, p := range all {
		out[i] = ParticipantInfo{ID: p.ID, Capabilities: p.Capabilities()}
	}
	return out
}

// Route performs the full envelope pipeline for a single inbound envelope
// already authenticated and From-stamped by the caller: rate limiting,
// capability check, special-kind engine dispatch (grants, proposals,
// streams), history append, recipient resolution, and delivery. When the
// envelope is dropped (rate limit, capability denial, engine error) it
// returns that single error; otherwise it returns the per-recipient
// delivery errors, if any.
func (s *Space) Route(e *envelope.Envelope) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lane := "messages"
	if e.Kind == envelope.KindChat {
		lane = "chat"
	}
	if !s.limiter.Allow(lane, e.From) {
		if s.metrics != nil {
			s.metrics.RateLimited()
		}
		return []error{s.sendErrorLocked(e.From, envelope.ErrRateLimited, "rate limit exceeded", e.ID)}
	}

	sender, ok := s.registry.Get(e.From)
	if !ok {
		return []error{fmt.Errorf("space: unknown sender %q", e.From)}
	}

	root, err := envelopeToRoot(e)
	if err != nil {
		return []error{err}
	}
	allowed := sender.Matcher.Allows(root)
	if s.hist != nil {
		s.hist.AppendDecision(s.ID, e.From, e.Kind, allowed)
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.CapabilityDenied()
		}
		return []error{s.sendErrorLocked(e.From, envelope.ErrCapabilityViolation, "capability denied for kind "+e.Kind, e.ID)}
	}

	if err := s.dispatchSpecialLocked(e); err != nil {
		return []error{s.sendErrorLocked(e.From, envelope.ErrHandlerError, err.Error(), e.ID)}
	}

	s.history.append(e)
	if s.hist != nil {
		s.hist.AppendEnvelope(s.ID, e)
	}
	if s.metrics != nil {
		s.metrics.EnvelopeRouted(e.Kind)
	}

	return s.deliverLocked(e)
}

func (s *Space) deliverLocked(e *envelope.Envelope) []error {
	var errs []error
	recipients := s.recipientsLocked(e)
	frame, err := envelope.Marshal(e)
	if err != nil {
		return []error{err}
	}
	for _, id := range recipients {
		p, ok := s.registry.Get(id)
		if !ok {
			if e.From != "system" {
				errs = append(errs, s.sendErrorLocked(e.From, envelope.ErrUnknownRecipient, "unknown recipient "+id, e.ID))
			} else {
				errs = append(errs, fmt.Errorf("%s: %s", envelope.ErrUnknownRecipient, id))
			}
			continue
		}
		if _, err := p.Send(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Space) recipientsLocked(e *envelope.Envelope) []string {
	if e.Broadcast() {
		all := s.registry.All()
		ids := make([]string, 0, len(all))
		for _, p := range all {
			if p.ID != e.From {
				ids = append(ids, p.ID)
			}
		}
		return ids
	}
	return e.To
}

func (s *Space) sendErrorLocked(to, code, message, relatedID string) error {
	errEnv := envelope.NewError(s.cfg.Protocol, to, code, message, relatedID)
	frame, err := envelope.Marshal(errEnv)
	if err != nil {
		return err
	}
	if p, ok := s.registry.Get(to); ok {
		_, _ = p.Send(frame)
	}
	return fmt.Errorf("%s: %s", code, message)
}

// RejectForgedSender sends an auth_violation system/error to senderID when
// the client's own "from" field does not match its authenticated identity.
// The envelope is dropped without closing the connection.
func (s *Space) RejectForgedSender(senderID, claimedFrom, relatedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendErrorLocked(senderID, envelope.ErrAuthViolation, "from does not match authenticated identity: "+claimedFrom, relatedID)
}

func (s *Space) sendSystemLocked(kind string, to []string, payload any) {
	e, err := envelope.New(s.cfg.Protocol, kind, "system", to, payload)
	if err != nil {
		s.logger("error", "system_envelope_failed", map[string]any{"space": s.ID, "kind": kind, "error": err.Error()})
		return
	}
	s.history.append(e)
	if s.hist != nil {
		s.hist.AppendEnvelope(s.ID, e)
	}
	_ = s.deliverLocked(e)
}

// SendSystem builds and routes a gateway-originated envelope (used for
// proposal expiry notices and similar system-initiated notifications)
// without going through capability checks, since it originates from the
// space itself, not a participant. A nil "to" broadcasts to every
// participant.
func (s *Space) SendSystem(kind string, to []string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendSystemLocked(kind, to, payload)
}

func envelopeToRoot(e *envelope.Envelope) (map[string]any, error) {
	b, err := envelope.Marshal(e)
	if err != nil {
		return nil, err
	}
	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	return root, nil
}
