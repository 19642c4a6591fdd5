package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTicket(t *testing.T) {
	var gotAuth string
	var gotReq ticketRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"result":0,"msg":"ok","data":{
			"id":"t1",
			"signalServer":"wss://relay.example.com/",
			"websocketPath":"/calls",
			"accessToken":"relay-token",
			"signalPingInterval":15,
			"iceServer":[{"url":"turn:turn.example.com:3478","username":"u","credential":"p"}]
		}}`))
	}))
	defer srv.Close()

	ticket, err := NewClient(srv.URL, zerolog.Nop()).FetchTicket(context.Background(), "jwt")
	require.NoError(t, err)

	assert.Equal(t, "Bearer jwt", gotAuth)
	assert.NotEmpty(t, gotReq.RequestID)
	assert.Equal(t, "call", gotReq.Purpose)

	assert.Equal(t, "t1", ticket.ID)
	assert.Equal(t, "wss://relay.example.com/calls", ticket.SignalURL())
	assert.Equal(t, 15*time.Second, ticket.Ping(time.Minute))
	require.Len(t, ticket.ICEServers, 1)
	assert.Equal(t, "u", ticket.ICEServers[0].Username)
}

func TestFetchTicket_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":-1024,"msg":"token expired"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, zerolog.Nop()).FetchTicket(context.Background(), "jwt")
	assert.ErrorContains(t, err, "token expired")
}

func TestFetchTicket_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, zerolog.Nop()).FetchTicket(context.Background(), "jwt")
	assert.ErrorContains(t, err, "http 401")
}

func TestFetchTicket_MissingSignalServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":0,"data":{"id":"t2"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, zerolog.Nop()).FetchTicket(context.Background(), "jwt")
	assert.ErrorContains(t, err, "no signal server")
}
