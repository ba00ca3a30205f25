// Package observer is the read-only spectator endpoint. A client
// connects to /observe?match=<id>, receives a fog-free MATCH_SNAPSHOT,
// then per-turn MATCH_UPDATE summaries until the match ends. Sends are
// non-blocking on the match side; a lagging spectator loses updates,
// never slows the match.
package observer

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"quantumharvest.ai/internal/sim/arena"
	"quantumharvest.ai/internal/sim/lobby"
)

const (
	writeDeadline = 5 * time.Second
	outQueueSize  = 64
)

type Server struct {
	lobby *lobby.Lobby
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(l *lobby.Lobby, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		lobby: l,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		// The snapshot ignores fog, so the feed stays local-only.
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		matchID := r.URL.Query().Get("match")
		if matchID == "" {
			http.Error(rw, "missing match", http.StatusBadRequest)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, outQueueSize)
		m, ar, err := s.lobby.Spectate(r.Context(), matchID, out)
		if err != nil {
			reason := "match not found"
			if errors.Is(err, lobby.ErrMatchOver) {
				reason = "match over"
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
				time.Now().Add(time.Second))
			return
		}
		defer s.lobby.Unspectate(m, ar.ID)

		if err := writeRaw(conn, ar.Snapshot); err != nil {
			return
		}
		s.log.Printf("observer: spectator %d watching %s", ar.ID, matchID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.writeLoop(ctx, cancel, conn, m, out)

		// Spectators send nothing; block until the client goes away or
		// the writer closes the connection under us.
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, m *arena.Match, out chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-out:
			if err := writeRaw(conn, b); err != nil {
				cancel()
				conn.Close()
				return
			}
		case <-m.Done():
			for {
				select {
				case b := <-out:
					if err := writeRaw(conn, b); err != nil {
						cancel()
						conn.Close()
						return
					}
				default:
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"),
						time.Now().Add(time.Second))
					cancel()
					conn.Close()
					return
				}
			}
		}
	}
}

func writeRaw(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
