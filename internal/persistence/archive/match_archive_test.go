package archive

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	matchlog "quantumharvest.ai/internal/persistence/log"
	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/game"
	"quantumharvest.ai/internal/sim/tuning"
)

func writeLog(t *testing.T, dataDir, matchID string, turns int, withResult bool) string {
	t.Helper()
	w, err := matchlog.NewMatchWriter(dataDir, matchID)
	if err != nil {
		t.Fatalf("NewMatchWriter: %v", err)
	}
	init := matchlog.InitRecord{
		Type:    matchlog.RecordInit,
		MatchID: matchID,
		Setup: game.Setup{
			Size:   8,
			Spawns: [2]game.Pos{{X: 0, Y: 0}, {X: 7, Y: 7}},
			Units: []game.UnitPlacement{
				{Owner: 0, Kind: game.UnitScout, Pos: game.Pos{X: 0, Y: 0}},
				{Owner: 1, Kind: game.UnitScout, Pos: game.Pos{X: 7, Y: 7}},
			},
		},
		Rules:  tuning.Default(),
		Digest: "d0",
	}
	if err := w.Write(init); err != nil {
		t.Fatalf("write init: %v", err)
	}
	for turn := 0; turn < turns; turn++ {
		if err := w.Write(matchlog.TurnRecord{Type: matchlog.RecordTurn, Turn: turn, Digest: "d"}); err != nil {
			t.Fatalf("write turn: %v", err)
		}
	}
	if withResult {
		rec := matchlog.ResultRecord{Type: matchlog.RecordResult, Turns: turns, Winner: 0, Reason: protocol.ReasonEnergy, Digest: "final"}
		if err := w.Write(rec); err != nil {
			t.Fatalf("write result: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return w.Path()
}

func TestArchiveMatchLog_RecompressesVerifiedLog(t *testing.T) {
	dataDir := t.TempDir()
	src := writeLog(t, dataDir, "m_ok", 4, true)

	dst, meta, err := ArchiveMatchLog(dataDir, src)
	if err != nil {
		t.Fatalf("ArchiveMatchLog: %v", err)
	}
	if filepath.Dir(dst) != filepath.Join(dataDir, "archives") {
		t.Fatalf("archived into %q", dst)
	}
	if meta.MatchID != "m_ok" || meta.Turns != 4 || meta.Records != 6 {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Winner != 0 || meta.Reason != protocol.ReasonEnergy || meta.FinalDigest != "final" {
		t.Fatalf("result meta mismatch: %+v", meta)
	}

	// The rewritten log must decode to the same record sequence.
	r, err := matchlog.OpenMatch(dst)
	if err != nil {
		t.Fatalf("OpenMatch archived: %v", err)
	}
	defer r.Close()
	var kinds []string
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		kinds = append(kinds, matchlog.RecordType(line))
	}
	want := []string{
		matchlog.RecordInit,
		matchlog.RecordTurn, matchlog.RecordTurn, matchlog.RecordTurn, matchlog.RecordTurn,
		matchlog.RecordResult,
	}
	if len(kinds) != len(want) {
		t.Fatalf("archived records=%d want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("record %d is %q want %q", i, kinds[i], want[i])
		}
	}

	metaPath := filepath.Join(dataDir, "archives", "match-m_ok.meta.json")
	b, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("expected meta sidecar: %v", err)
	}
	var onDisk MatchArchiveMeta
	if err := json.Unmarshal(b, &onDisk); err != nil {
		t.Fatalf("meta sidecar: %v", err)
	}
	if onDisk.MatchID != "m_ok" || onDisk.CreatedAt == "" {
		t.Fatalf("meta sidecar mismatch: %+v", onDisk)
	}
}

func TestArchiveMatchLog_RejectsUnfinishedLog(t *testing.T) {
	dataDir := t.TempDir()
	src := writeLog(t, dataDir, "m_open", 2, false)

	if _, _, err := ArchiveMatchLog(dataDir, src); err == nil {
		t.Fatalf("expected verify failure for a log with no result")
	}
	ents, err := os.ReadDir(filepath.Join(dataDir, "archives"))
	if err != nil {
		t.Fatalf("read archives dir: %v", err)
	}
	for _, e := range ents {
		t.Fatalf("unexpected archive output %q", e.Name())
	}
}

func TestArchiveMatchLog_RejectsTurnGap(t *testing.T) {
	dataDir := t.TempDir()
	w, err := matchlog.NewMatchWriter(dataDir, "m_gap")
	if err != nil {
		t.Fatalf("NewMatchWriter: %v", err)
	}
	_ = w.Write(matchlog.InitRecord{Type: matchlog.RecordInit, MatchID: "m_gap", Rules: tuning.Default()})
	_ = w.Write(matchlog.TurnRecord{Type: matchlog.RecordTurn, Turn: 0, Digest: "d"})
	_ = w.Write(matchlog.TurnRecord{Type: matchlog.RecordTurn, Turn: 2, Digest: "d"})
	_ = w.Write(matchlog.ResultRecord{Type: matchlog.RecordResult, Turns: 2})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, _, err := ArchiveMatchLog(dataDir, w.Path()); err == nil {
		t.Fatalf("expected verify failure for a turn gap")
	}
}
