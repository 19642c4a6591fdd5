package control

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vico_home/callcore/internal/domain"
)

const (
	eventBuffer = 16
	writeWait   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to loopback; local UIs run from arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// events streams session snapshots. The current state, if any, is sent
// first. A client too slow to keep up loses intermediate snapshots.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade events stream")
		return
	}
	defer conn.Close()

	updates := make(chan *domain.CallSession, eventBuffer)
	unsubscribe := s.calls.OnStateChange(func(st *domain.CallSession) {
		select {
		case updates <- st:
		default:
			s.log.Warn().Msg("events client lagging, dropping snapshot")
		}
	})
	defer unsubscribe()

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if st := s.calls.State(); st != nil {
		if err := write(conn, st); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st := <-updates:
			if err := write(conn, st); err != nil {
				s.log.Debug().Err(err).Msg("events client gone")
				return
			}
		}
	}
}

func write(conn *websocket.Conn, st *domain.CallSession) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(st)
}
