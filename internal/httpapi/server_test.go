package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mewprotocol/gateway/internal/auth"
	"github.com/mewprotocol/gateway/internal/logsink"
	"github.com/mewprotocol/gateway/internal/router"
	"github.com/mewprotocol/gateway/internal/space"
)

func newTestServer(t *testing.T) (*Server, *auth.Issuer) {
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
	sink := logsink.New(logsink.Options{Dir: t.TempDir()})

	srv := &Server{
		Manager:             mgr,
		Issuer:              issuer,
		Verifier:            verifier,
		Dispatcher:          dispatcher,
		LogSink:             sink,
		Protocol:            "mew/v0.4",
		DefaultCapabilities: []string{"chat"},
	}
	return srv, issuer
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestLazyAutoConnectCreatesVirtualParticipantAndDelivers(t *testing.T) {
	srv, issuer := newTestServer(t)
	sp := srv.Manager.GetOrCreate("space-1")

	tok, err := issuer.Issue("agent-offline", "space-1", []string{"chat"})
	require.NoError(t, err)

	body := `{"kind":"chat","payload":{"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/spaces/space-1/participants/agent-offline/messages", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	_, ok := sp.Participant("agent-offline")
	assert.True(t, ok, "lazy auto-connect should have registered the participant")
}

func TestLazyAutoConnectRejectsMismatchedToken(t *testing.T) {
	srv, issuer := newTestServer(t)
	srv.Manager.GetOrCreate("space-1")

	tok, err := issuer.Issue("agent-a", "space-1", []string{"chat"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/spaces/space-1/participants/agent-b/messages", strings.NewReader(`{"kind":"chat"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDevTokenEndpointDisabledByDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDevTokenEndpointIssuesToken(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.DevTokenEndpointEnabled = true

	body := `{"participant_id":"agent-a","space":"space-1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "token")
}
