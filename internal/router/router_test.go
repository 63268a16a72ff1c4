package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mewprotocol/gateway/internal/space"
)

type fakeSink struct{ frames [][]byte }

func (f *fakeSink) Send(frame []byte) error { f.frames = append(f.frames, frame); return nil }
func (f *fakeSink) Close() error            { return nil }

func testManager() *space.Manager {
	cfg := space.Config{
		Protocol:            "mew/v0.4",
		HistoryCap:          50,
		ProposalExpiry:      0,
		DefaultCapabilities: []string{"chat"},
	}
	return space.NewManager(cfg, nil, nil, nil)
}

func TestHandleInboundStampsFromWhenOmitted(t *testing.T) {
	mgr := testManager()
	sp := mgr.GetOrCreate("space-1")
	_, _, err := sp.Join("agent-a", []string{"chat"}, &fakeSink{})
	require.NoError(t, err)
	recv := &fakeSink{}
	_, _, err = sp.Join("agent-b", []string{"chat"}, recv)
	require.NoError(t, err)

	d := NewDispatcher(mgr, "mew/v0.4", 0)
	errs := d.HandleInbound("space-1", "agent-a", []byte(`{"kind":"chat","payload":{"text":"hi"}}`))
	assert.Empty(t, errs)
	require.Len(t, recv.frames, 1)
	assert.Contains(t, string(recv.frames[0]), `"from":"agent-a"`)
}

func TestHandleInboundRejectsForgedFrom(t *testing.T) {
	mgr := testManager()
	sp := mgr.GetOrCreate("space-1")
	sender := &fakeSink{}
	_, _, err := sp.Join("agent-a", []string{"chat"}, sender)
	require.NoError(t, err)
	recv := &fakeSink{}
	_, _, err = sp.Join("agent-b", []string{"chat"}, recv)
	require.NoError(t, err)

	before := len(sender.frames)

	d := NewDispatcher(mgr, "mew/v0.4", 0)
	errs := d.HandleInbound("space-1", "agent-a", []byte(`{"from":"someone-else","kind":"chat","payload":{"text":"hi"}}`))
	require.Len(t, errs, 1)
	assert.Empty(t, recv.frames, "a forged envelope must not be delivered")
	require.Len(t, sender.frames, before+1, "the sender should receive the auth_violation system/error")
	assert.Contains(t, string(sender.frames[before]), "auth_violation")
}

func TestHandleInboundRejectsUnknownSpace(t *testing.T) {
	mgr := testManager()
	d := NewDispatcher(mgr, "mew/v0.4", 0)
	errs := d.HandleInbound("nonexistent", "agent-a", []byte(`{"kind":"chat"}`))
	require.Len(t, errs, 1)
}

func TestHandleInboundRejectsMalformedFrame(t *testing.T) {
	mgr := testManager()
	mgr.GetOrCreate("space-1")
	d := NewDispatcher(mgr, "mew/v0.4", 0)
	errs := d.HandleInbound("space-1", "agent-a", []byte(`not json`))
	require.Len(t, errs, 1)
}
