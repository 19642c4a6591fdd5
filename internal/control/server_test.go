package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vico_home/callcore/internal/call"
	"vico_home/callcore/internal/calltest"
	"vico_home/callcore/internal/domain"
	"vico_home/callcore/internal/identity"
	"vico_home/callcore/internal/negotiation"
)

type env struct {
	ch  *calltest.Channel
	m   *call.Manager
	srv *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ch := calltest.NewChannel()
	m := call.New(identity.Static("alice"), ch, negotiation.NewSignalingOnly(zerolog.Nop()), &calltest.Resources{},
		call.Options{Clock: clock.NewMock()}, zerolog.Nop())
	require.NoError(t, m.Start(context.Background()))

	srv := httptest.NewServer(NewServer(m, ch.IsConnected, zerolog.Nop()).Router())
	t.Cleanup(func() {
		srv.Close()
		m.Close()
	})
	return &env{ch: ch, m: m, srv: srv}
}

func (e *env) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp := e.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["connected"])
}

func TestState_Idle(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusNoContent, e.get(t, "/call").StatusCode)
}

func TestStartAndEnd(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/call/start", `{"peerId":"bob","mediaKind":"video"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := decode[domain.CallSession](t, resp)
	assert.Equal(t, "bob", sess.PeerID)
	assert.Equal(t, domain.PhaseOutgoing, sess.Phase)
	assert.Equal(t, domain.MediaVideo, sess.MediaKind)

	resp = e.get(t, "/call")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sess.SessionID, decode[domain.CallSession](t, resp).SessionID)

	assert.Equal(t, http.StatusConflict, e.post(t, "/call/start", `{"peerId":"carol"}`).StatusCode)
	assert.Equal(t, http.StatusConflict, e.post(t, "/call/mute", "").StatusCode)
	assert.Equal(t, http.StatusConflict, e.post(t, "/call/accept", "").StatusCode)

	assert.Equal(t, http.StatusNoContent, e.post(t, "/call/end", "").StatusCode)
	assert.Equal(t, http.StatusNoContent, e.get(t, "/call").StatusCode)
	assert.Equal(t, 1, e.ch.Count(domain.EventEnd))
}

func TestStart_DefaultsToVoice(t *testing.T) {
	e := newEnv(t)
	resp := e.post(t, "/call/start", `{"peerId":"bob"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, domain.MediaVoice, decode[domain.CallSession](t, resp).MediaKind)
}

func TestStart_BadRequests(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusBadRequest, e.post(t, "/call/start", `{`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.post(t, "/call/start", `{"peerId":"bob","mediaKind":"fax"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.post(t, "/call/start", `{"peerId":""}`).StatusCode)
}

func TestAcceptAndToggle(t *testing.T) {
	e := newEnv(t)
	e.ch.Deliver(domain.EventInvite, domain.Signal{SessionID: "S1", From: "bob", MediaKind: domain.MediaVideo})
	require.Eventually(t, func() bool { return e.m.State() != nil }, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusNoContent, e.post(t, "/call/accept", "").StatusCode)

	resp := e.post(t, "/call/mute", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"isMuted": true}, decode[map[string]bool](t, resp))

	resp = e.post(t, "/call/video", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"isVideoEnabled": false}, decode[map[string]bool](t, resp))

	assert.Equal(t, http.StatusNoContent, e.post(t, "/call/camera", "").StatusCode)
}

func TestEvents_StreamsSnapshots(t *testing.T) {
	e := newEnv(t)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/call/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered before the handler reads the state;
	// wait for it before triggering a change
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, http.StatusCreated, e.post(t, "/call/start", `{"peerId":"bob"}`).StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var st domain.CallSession
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, domain.PhaseOutgoing, st.Phase)
	assert.Equal(t, "bob", st.PeerID)

	require.Equal(t, http.StatusNoContent, e.post(t, "/call/end", "").StatusCode)
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, domain.PhaseEnded, st.Phase)
	assert.Equal(t, domain.EndHangup, st.EndReason)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(call.ErrClosed))
	assert.Equal(t, http.StatusUnauthorized, statusFor(domain.ErrNoIdentity))
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrCallInProgress))
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("toggle: %w", domain.ErrNoActiveCall)))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.ErrInvalidPeer))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
