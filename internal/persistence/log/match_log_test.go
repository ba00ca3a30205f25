package log

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/game"
	"quantumharvest.ai/internal/sim/tuning"
)

func TestMatchLog_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := NewMatchWriter(dir, "m_rt")
	if err != nil {
		t.Fatalf("NewMatchWriter: %v", err)
	}
	if w.Path() != MatchPath(dir, "m_rt") {
		t.Fatalf("Path=%q want %q", w.Path(), MatchPath(dir, "m_rt"))
	}

	init := InitRecord{
		Type:      RecordInit,
		MatchID:   "m_rt",
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Setup: game.Setup{
			Size:   8,
			Seed:   7,
			Spawns: [2]game.Pos{{X: 0, Y: 0}, {X: 7, Y: 7}},
			Units: []game.UnitPlacement{
				{Owner: 0, Kind: game.UnitScout, Pos: game.Pos{X: 0, Y: 0}},
				{Owner: 1, Kind: game.UnitScout, Pos: game.Pos{X: 7, Y: 7}},
			},
		},
		Rules:  tuning.Default(),
		Digest: "d0",
	}
	turn := TurnRecord{
		Type: RecordTurn,
		Turn: 0,
		Orders: [2][]protocol.OrderReq{
			{{Unit: 1, Act: [4]int{0, 2, 2, 0}}},
			nil,
		},
		Events: []protocol.Event{{"type": "ACTION", "action": "MOVE"}},
		Digest: "d1",
	}
	result := ResultRecord{Type: RecordResult, Turns: 1, Winner: -1, Reason: protocol.ReasonDraw, Digest: "d1"}

	for _, rec := range []any{init, turn, result} {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenMatch(w.Path())
	if err != nil {
		t.Fatalf("OpenMatch: %v", err)
	}
	defer r.Close()

	line, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if RecordType(line) != RecordInit {
		t.Fatalf("first record type %q", RecordType(line))
	}
	var gotInit InitRecord
	if err := json.Unmarshal(line, &gotInit); err != nil {
		t.Fatalf("unmarshal init: %v", err)
	}
	if gotInit.MatchID != "m_rt" || gotInit.Setup.Size != 8 || gotInit.Rules.MaxTurns != init.Rules.MaxTurns {
		t.Fatalf("init record mismatch: %+v", gotInit)
	}

	line, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var gotTurn TurnRecord
	if err := json.Unmarshal(line, &gotTurn); err != nil {
		t.Fatalf("unmarshal turn: %v", err)
	}
	if gotTurn.Turn != 0 || len(gotTurn.Orders[0]) != 1 || gotTurn.Orders[0][0].Unit != 1 {
		t.Fatalf("turn record mismatch: %+v", gotTurn)
	}
	if gotTurn.Orders[0][0].Act != [4]int{0, 2, 2, 0} {
		t.Fatalf("act vector mismatch: %v", gotTurn.Orders[0][0].Act)
	}

	line, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var gotResult ResultRecord
	if err := json.Unmarshal(line, &gotResult); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if gotResult.Winner != -1 || gotResult.Reason != protocol.ReasonDraw {
		t.Fatalf("result record mismatch: %+v", gotResult)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestMatchWriter_WriteAfterClose(t *testing.T) {
	w, err := NewMatchWriter(t.TempDir(), "m_closed")
	if err != nil {
		t.Fatalf("NewMatchWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Write(ResultRecord{Type: RecordResult}); err == nil {
		t.Fatalf("expected write-after-close to fail")
	}
}
