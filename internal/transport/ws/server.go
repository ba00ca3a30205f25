// Package ws is the agent-facing websocket endpoint. One connection is
// one seat: HELLO seats the agent through the lobby, WELCOME answers,
// then the reader forwards ACT messages to the match inbox while a
// writer goroutine drains the seat's outbound queue. Slow or silent
// clients are dropped; they never block the match loop.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/arena"
	"quantumharvest.ai/internal/sim/lobby"
)

const (
	helloDeadline   = 5 * time.Second
	writeDeadline   = 5 * time.Second
	readIdleTimeout = 60 * time.Second
	outQueueSize    = 16
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
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		seat, out, ok := s.handshake(conn)
		if !ok {
			return
		}
		defer s.lobby.Leave(seat)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.writeLoop(ctx, cancel, conn, seat, out)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				continue
			}
			select {
			case seat.Match.Inbox() <- arena.ActEnvelope{Seat: seat.Player, Msg: act}:
			case <-seat.Match.Done():
				// Match over; the writer is flushing the RESULT.
			}
		}
	}
}

// writeLoop drains the seat's outbound queue onto the wire. Once the
// match finishes it flushes what the match queued and closes politely.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, seat lobby.Seat, out chan []byte) {
	done := seat.Match.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-out:
			if err := writeRaw(conn, b); err != nil {
				cancel()
				return
			}
		case <-done:
			for {
				select {
				case b := <-out:
					if err := writeRaw(conn, b); err != nil {
						cancel()
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

func (s *Server) handshake(conn *websocket.Conn) (lobby.Seat, chan []byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(helloDeadline))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return lobby.Seat{}, nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return lobby.Seat{}, nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return lobby.Seat{}, nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ErrProtoBadRequest, "bad protocol_version")
		return lobby.Seat{}, nil, false
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}

	out := make(chan []byte, outQueueSize)
	seat, err := s.lobby.Join(hello.AgentName, hello.MatchID, out)
	if err != nil {
		s.reject(conn, joinErrorCode(err), err.Error())
		return lobby.Seat{}, nil, false
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		MatchID:         seat.MatchID,
		Player:          seat.Player,
		MatchParams: protocol.MatchParams{
			MapSize:       seat.MapSize,
			MaxTurns:      seat.MaxTurns,
			TurnTimeoutMs: int(seat.TurnTimeout / time.Millisecond),
			Seed:          seat.Seed,
		},
		RulesDigest: seat.RulesDigest,
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.lobby.Leave(seat)
		return lobby.Seat{}, nil, false
	}

	s.log.Printf("ws: %s seated as player %d in %s", hello.AgentName, seat.Player, seat.MatchID)
	return seat, out, true
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, lobby.ErrMatchNotFound):
		return protocol.ErrMatchNotFound
	case errors.Is(err, lobby.ErrMatchFull):
		return protocol.ErrMatchFull
	default:
		return protocol.ErrInternal
	}
}

// reject sends an in-band ERROR so agents see the code, then closes.
func (s *Server) reject(conn *websocket.Conn, code, msg string) {
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	})
	if err == nil {
		_ = writeRaw(conn, b)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeRaw(conn, b)
}

func writeRaw(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, b)
}
