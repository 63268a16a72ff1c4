// Package wsgateway implements the gateway's WebSocket transport using
// github.com/gorilla/websocket, which the teacher's go.mod declares but
// never exercises (its connector-hub WebSocket connector is a stubbed-out
// HTTP ingest validator, not a real client). This package is where the
// dependency finally does real work, as a server-side upgrader.
package wsgateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mewprotocol/gateway/internal/auth"
	"github.com/mewprotocol/gateway/internal/envelope"
	"github.com/mewprotocol/gateway/internal/participant"
	"github.com/mewprotocol/gateway/internal/router"
	"github.com/mewprotocol/gateway/internal/space"
	"github.com/mewprotocol/gateway/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Server upgrades HTTP connections to WebSocket and runs the read/write
// pumps for each participant connection, matching spec §5's "two logical
// tasks per connection."
type Server struct {
	Manager    *space.Manager
	Verifier   *auth.Verifier
	Dispatcher *router.Dispatcher
	Protocol   string
	Logger     *telemetry.Logger

	HandshakeTimeout    time.Duration
	DefaultCapabilities []string

	upgrader websocket.Upgrader
}

// NewServer constructs a Server. CORS on the WebSocket handshake itself is
// intentionally permissive (token-based auth is the real boundary); HTTP
// surface CORS is handled by internal/httpmw.
func NewServer(mgr *space.Manager, verifier *auth.Verifier, dispatcher *router.Dispatcher, protocol string, logger *telemetry.Logger, handshakeTimeout time.Duration, defaultCaps []string) *Server {
	return &Server{
		Manager:             mgr,
		Verifier:            verifier,
		Dispatcher:          dispatcher,
		Protocol:            protocol,
		Logger:              logger,
		HandshakeTimeout:    handshakeTimeout,
		DefaultCapabilities: defaultCaps,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// connSink adapts a *websocket.Conn and its buffered write pump to
// participant.Sink.
type connSink struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
}

func (c *connSink) Send(frame []byte) error {
	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	}
}

func (c *connSink) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return c.conn.Close()
}

// ServeHTTP upgrades the connection, authenticates it, joins it to the
// named space, and runs its read/write pumps until disconnect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	spaceID := r.URL.Query().Get("space")
	token := r.URL.Query().Get("token")
	if spaceID == "" {
		http.Error(w, "missing space parameter", http.StatusBadRequest)
		return
	}

	identity, err := s.Verifier.VerifyToken(token, spaceID, s.DefaultCapabilities)
	if err != nil {
		http.Error(w, "auth_violation: "+err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sink := &connSink{conn: conn, out: make(chan []byte, sendBufferSize), done: make(chan struct{})}
	sp := s.Manager.GetOrCreate(spaceID)

	p, history, err := sp.Join(identity.ParticipantID, identity.Capabilities, sink)
	if err != nil {
		welcome, _ := envelope.New(s.Protocol, envelope.KindSystemError, "system", nil, envelope.ErrorPayload{
			Error: envelope.ErrDuplicateParticipant, Message: err.Error(),
		})
		frame, _ := envelope.Marshal(welcome)
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		_ = conn.Close()
		return
	}

	go s.writePump(sink)
	s.sendWelcome(sink, sp, p, history)
	s.readPump(spaceID, identity.ParticipantID, sink, sp, p)
}

// welcomeIdentity is the "you" field of a system/welcome payload.
type welcomeIdentity struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// welcomePayload matches the system/welcome shape a late joiner needs to
// reconstruct space state: its own identity, the current roster with each
// participant's effective capabilities, any streams already in progress,
// and recent history.
type welcomePayload struct {
	You           welcomeIdentity           `json:"you"`
	Participants  []space.ParticipantInfo   `json:"participants"`
	ActiveStreams []space.ActiveStreamInfo  `json:"active_streams"`
	History       []*envelope.Envelope      `json:"history"`
}

func (s *Server) sendWelcome(sink *connSink, sp *space.Space, p *participant.Participant, history []*envelope.Envelope) {
	payload := welcomePayload{
		You:           welcomeIdentity{ID: p.ID, Capabilities: p.Capabilities()},
		Participants:  sp.Participants(),
		ActiveStreams: sp.ActiveStreams(),
		History:       history,
	}
	welcome, err := envelope.New(s.Protocol, envelope.KindSystemWelcome, "system", []string{p.ID}, payload)
	if err != nil {
		return
	}
	frame, err := envelope.Marshal(welcome)
	if err != nil {
		return
	}
	_ = sink.Send(frame)
}

func (s *Server) readPump(spaceID, participantID string, sink *connSink, sp *space.Space, p *participant.Participant) {
	defer func() {
		sp.Leave(participantID)
		s.Manager.ReleaseIfEmpty(spaceID)
		_ = sink.Close()
	}()

	sink.conn.SetReadDeadline(time.Now().Add(pongWait))
	sink.conn.SetPongHandler(func(string) error {
		sink.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := sink.conn.ReadMessage()
		if err != nil {
			return
		}
		errs := s.Dispatcher.HandleInbound(spaceID, participantID, msg)
		for _, e := range errs {
			if s.Logger != nil {
				s.Logger.Warn(nil, "inbound_envelope_error", map[string]any{
					"space": spaceID, "participant": participantID, "error": e.Error(),
				})
			}
		}
	}
}

func (s *Server) writePump(sink *connSink) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-sink.out:
			sink.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sink.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sink.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			sink.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sink.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sink.done:
			return
		}
	}
}
