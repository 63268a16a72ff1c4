// Package httpapi implements the gateway's non-WebSocket HTTP surface:
// health, metrics, dev-mode token issuance, and the lazy auto-connect
// message ingestion endpoint, routed with github.com/gorilla/mux to match
// the teacher's root go.mod dependency.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mewprotocol/gateway/internal/auth"
	"github.com/mewprotocol/gateway/internal/envelope"
	"github.com/mewprotocol/gateway/internal/logsink"
	"github.com/mewprotocol/gateway/internal/metrics"
	"github.com/mewprotocol/gateway/internal/participant"
	"github.com/mewprotocol/gateway/internal/router"
	"github.com/mewprotocol/gateway/internal/space"
)

// Server wires the HTTP handlers; its internal mux.Router is returned by
// Handler for cmd/gateway to wrap with middleware.
type Server struct {
	Manager    *space.Manager
	Issuer     *auth.Issuer
	Verifier   *auth.Verifier
	Dispatcher *router.Dispatcher
	Metrics    *metrics.Metrics
	LogSink    *logsink.Sink
	Protocol   string
	StartedAt  time.Time

	DevTokenEndpointEnabled bool
	DefaultCapabilities     []string
}

// Handler builds the gorilla/mux router for the HTTP surface.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
	}
	if s.DevTokenEndpointEnabled {
		r.HandleFunc("/auth/token", s.handleIssueToken).Methods(http.MethodPost)
	}
	r.HandleFunc("/spaces/{space}/participants/{id}/messages", s.handlePostMessage).Methods(http.MethodPost)
	return r
}

type healthResp struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Protocol  string  `json:"protocol"`
	Service   string  `json:"service"`
	TS        string  `json:"ts"`
	RequestID string  `json:"request_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime float64
	if !s.StartedAt.IsZero() {
		uptime = time.Since(s.StartedAt).Seconds()
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(healthResp{
		Status:    "ok",
		Uptime:    uptime,
		Protocol:  s.Protocol,
		Service:   "mew-gateway",
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		RequestID: r.Header.Get("X-Request-Id"),
	})
}

type issueTokenRequest struct {
	ParticipantID string   `json:"participant_id"`
	Space         string   `json:"space"`
	Capabilities  []string `json:"capabilities"`
}

type issueTokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}
	if req.ParticipantID == "" || req.Space == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_format", "participant_id and space are required")
		return
	}
	caps := req.Capabilities
	if len(caps) == 0 {
		caps = s.DefaultCapabilities
	}
	tok, err := s.Issuer.Issue(req.ParticipantID, req.Space, caps)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(issueTokenResponse{Token: tok})
}

// handlePostMessage implements lazy auto-connect (spec §6): a POST to a
// participant with no live socket synthesizes a log-backed virtual
// connection and routes the message exactly as if it arrived over the
// WebSocket.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	spaceID := vars["space"]
	participantID := vars["id"]

	bearer := extractBearer(r)
	identity, err := s.Verifier.VerifyToken(bearer, spaceID, s.DefaultCapabilities)
	if err != nil || identity.ParticipantID != participantID {
		writeJSONError(w, http.StatusUnauthorized, "auth_violation", "invalid or mismatched token")
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}

	sp := s.Manager.GetOrCreate(spaceID)
	p, ok := sp.Participant(participantID)
	if !ok || !p.Connected() {
		if s.LogSink == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "server_error", "no log sink configured for lazy auto-connect")
			return
		}
		virtual := logsink.NewVirtualSink(s.LogSink, spaceID, participantID)
		created, history, err := sp.Join(participantID, identity.Capabilities, virtual)
		if err != nil {
			writeJSONError(w, http.StatusConflict, "duplicate_participant", err.Error())
			return
		}
		p = created
		sendWelcome(s.Protocol, virtual, sp, p, history)
	}

	errs := s.Dispatcher.HandleInbound(spaceID, participantID, raw)
	if len(errs) > 0 {
		writeJSONError(w, http.StatusBadRequest, "handler_error", errs[0].Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// welcomeIdentity is the "you" field of a system/welcome payload.
type welcomeIdentity struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// welcomePayload mirrors internal/wsgateway's welcome shape so a
// log-backed lazy auto-connect participant observes the same state a
// live WebSocket joiner would.
type welcomePayload struct {
	You           welcomeIdentity          `json:"you"`
	Participants  []space.ParticipantInfo  `json:"participants"`
	ActiveStreams []space.ActiveStreamInfo `json:"active_streams"`
	History       []*envelope.Envelope     `json:"history"`
}

// sendWelcome delivers a system/welcome to sink directly, ahead of the
// HandleInbound call that follows, so a lazily-created participant's log
// always begins with its welcome line.
func sendWelcome(protocol string, sink participant.Sink, sp *space.Space, p *participant.Participant, history []*envelope.Envelope) {
	payload := welcomePayload{
		You:           welcomeIdentity{ID: p.ID, Capabilities: p.Capabilities()},
		Participants:  sp.Participants(),
		ActiveStreams: sp.ActiveStreams(),
		History:       history,
	}
	welcome, err := envelope.New(protocol, envelope.KindSystemWelcome, "system", []string{p.ID}, payload)
	if err != nil {
		return
	}
	frame, err := envelope.Marshal(welcome)
	if err != nil {
		return
	}
	_ = sink.Send(frame)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return h
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	var eb errorBody
	eb.Error.Code = code
	eb.Error.Message = message
	_ = json.NewEncoder(w).Encode(eb)
}
