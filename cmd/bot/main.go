package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/tuning"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/ws", "ws url")
		name  = flag.String("name", "bot", "agent name")
		match = flag.String("match", "", "match id to join (empty: lobby pairing)")
		seed  = flag.Int64("seed", 1, "tie-break rng seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		MatchID:         *match,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{rules: tuning.Default(), rng: rand.New(rand.NewSource(*seed))}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			b.welcome(w)
			logger.Printf("WELCOME match=%s player=%d map=%d", w.MatchID, w.Player, w.MatchParams.MapSize)

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			if obs.Done {
				// RESULT follows on the same connection.
				continue
			}
			_ = conn.WriteJSON(b.plan(&obs))

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("ERROR %s: %s", e.Code, e.Message)

		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			logger.Printf("RESULT winner=%d reason=%s turns=%d digest=%s", res.Winner, res.Reason, res.Turns, res.Digest)
			return
		}
	}
}
