package wsgateway

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mewprotocol/gateway/internal/auth"
	"github.com/mewprotocol/gateway/internal/router"
	"github.com/mewprotocol/gateway/internal/space"
)

func testServer(t *testing.T) (*httptest.Server, *auth.Issuer) {
	t.Helper()
	cfg := space.Config{
		Protocol:            "mew/v0.4",
		HistoryCap:          50,
		DefaultCapabilities: []string{"chat"},
	}
	mgr := space.NewManager(cfg, nil, nil, nil)
	verifier := auth.NewVerifier("test-secret", false)
	issuer := auth.NewIssuer("test-secret", time.Hour)
	dispatcher := router.NewDispatcher(mgr, "mew/v0.4", 0)
	ws := NewServer(mgr, verifier, dispatcher, "mew/v0.4", nil, time.Second, []string{"chat"})

	srv := httptest.NewServer(ws)
	t.Cleanup(srv.Close)
	return srv, issuer
}

func dial(t *testing.T, srv *httptest.Server, space, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?space=" + space + "&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestUpgradeAndWelcomeMessage(t *testing.T) {
	srv, issuer := testServer(t)
	tok, err := issuer.Issue("agent-a", "space-1", []string{"chat"})
	require.NoError(t, err)

	conn := dial(t, srv, "space-1", tok)
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"system/welcome"`)
	require.Contains(t, string(msg), `"you":{"id":"agent-a"`)
	require.Contains(t, string(msg), `"active_streams"`)
}

func TestDuplicateConnectedParticipantIsRejected(t *testing.T) {
	srv, issuer := testServer(t)
	tok, err := issuer.Issue("agent-a", "space-1", []string{"chat"})
	require.NoError(t, err)

	first := dial(t, srv, "space-1", tok)
	defer first.Close()
	_, _, err = first.ReadMessage() // welcome
	require.NoError(t, err)

	second := dial(t, srv, "space-1", tok)
	defer second.Close()

	_, msg, err := second.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"system/error"`)
	require.Contains(t, string(msg), "duplicate_participant")
}

func TestInboundMessageIsRoutedToOtherParticipant(t *testing.T) {
	srv, issuer := testServer(t)
	tokA, err := issuer.Issue("agent-a", "space-1", []string{"chat"})
	require.NoError(t, err)
	tokB, err := issuer.Issue("agent-b", "space-1", []string{"chat"})
	require.NoError(t, err)

	connA := dial(t, srv, "space-1", tokA)
	defer connA.Close()
	_, _, err = connA.ReadMessage() // welcome
	require.NoError(t, err)

	connB := dial(t, srv, "space-1", tokB)
	defer connB.Close()
	_, _, err = connB.ReadMessage() // welcome
	require.NoError(t, err)

	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte(`{"kind":"chat","payload":{"text":"hi"}}`)))

	_, msg, err := connB.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"kind":"chat"`)
	require.Contains(t, string(msg), `"from":"agent-a"`)
}

func TestMissingSpaceParameterReturnsBadRequest(t *testing.T) {
	srv, _ := testServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=whatever"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 400, resp.StatusCode)
}

func TestBadTokenReturnsUnauthorized(t *testing.T) {
	srv, _ := testServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?space=space-1&token=not-a-real-jwt"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}
