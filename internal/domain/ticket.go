package domain

import (
	"strings"
	"time"
)

// Ticket holds relay credentials and ICE server configuration returned by the
// backend when CALL_TICKET_URL is configured.
type Ticket struct {
	ID             string      `json:"id"`
	ICEServers     []ICEServer `json:"iceServer"`
	SignalServer   string      `json:"signalServer"`
	WebsocketPath  string      `json:"websocketPath"`
	AccessToken    string      `json:"accessToken"`
	PingInterval   int         `json:"signalPingInterval"`
	ExpirationTime int64       `json:"expirationTime"`
}

// SignalURL joins the relay server and websocket path.
func (t *Ticket) SignalURL() string {
	if t.WebsocketPath == "" {
		return t.SignalServer
	}
	return strings.TrimRight(t.SignalServer, "/") + "/" + strings.TrimLeft(t.WebsocketPath, "/")
}

// Ping returns the relay keepalive interval, or fallback when unset.
func (t *Ticket) Ping(fallback time.Duration) time.Duration {
	if t.PingInterval <= 0 {
		return fallback
	}
	return time.Duration(t.PingInterval) * time.Second
}

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URL        string `json:"url"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
}
