package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vico_home/callcore/internal/domain"
)

// echoRelay upgrades every request and echoes frames back to the sender.
type echoRelay struct {
	upgrades atomic.Int32
	auth     atomic.Value
}

func (e *echoRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	e.upgrades.Add(1)
	e.auth.Store(r.Header.Get("Authorization"))
	defer conn.Close()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func newTestClient(t *testing.T) (*Client, *echoRelay) {
	t.Helper()
	relay := &echoRelay{}
	srv := httptest.NewServer(relay)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(url, "tok", time.Hour, zerolog.Nop())
	t.Cleanup(c.Close)
	return c, relay
}

func TestClient_EmitBeforeConnect(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.Emit(domain.EventEnd, domain.Signal{SessionID: "s1"})
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.False(t, c.IsConnected())
}

func TestClient_ConcurrentConnectSharesDial(t *testing.T) {
	c, relay := newTestClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Connect(context.Background()))
		}()
	}
	wg.Wait()

	assert.True(t, c.IsConnected())
	assert.Equal(t, int32(1), relay.upgrades.Load())
	assert.Equal(t, "Bearer tok", relay.auth.Load())

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, int32(1), relay.upgrades.Load())
}

func TestClient_EmitAndReceive(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	got := make(chan domain.Signal, 1)
	unsub := c.Subscribe(domain.EventInvite, func(payload json.RawMessage) {
		var sig domain.Signal
		if err := json.Unmarshal(payload, &sig); err == nil {
			got <- sig
		}
	})
	defer unsub()

	require.NoError(t, c.Emit(domain.EventInvite, domain.Signal{
		SessionID: "s1",
		From:      "u1",
		To:        "u2",
		MediaKind: domain.MediaVideo,
	}))

	select {
	case sig := <-got:
		assert.Equal(t, "s1", sig.SessionID)
		assert.Equal(t, domain.MediaVideo, sig.MediaKind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected echoed invite")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	c.Close()
	c.Close()
	assert.False(t, c.IsConnected())
	assert.Error(t, c.Connect(context.Background()))
}
