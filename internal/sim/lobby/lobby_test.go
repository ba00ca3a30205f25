package lobby

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"quantumharvest.ai/internal/observerproto"
	"quantumharvest.ai/internal/persistence/indexdb"
	matchlog "quantumharvest.ai/internal/persistence/log"
	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/tuning"
)

func testRules() tuning.Rules {
	r := tuning.Default()
	r.MapSize = 8
	r.MaxTurns = 40
	return r
}

func newTestLobby(t *testing.T, cfg Config) *Lobby {
	t.Helper()
	if cfg.Rules.MapSize == 0 {
		cfg.Rules = testRules()
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.TurnTimeout == 0 {
		cfg.TurnTimeout = time.Minute
	}
	l := New(cfg)
	t.Cleanup(l.Close)
	return l
}

func recv(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for message")
		return nil
	}
}

func TestJoinPairsTwoAgents(t *testing.T) {
	l := newTestLobby(t, Config{})

	outA := make(chan []byte, 16)
	seatA, err := l.Join("alice", "", outA)
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if seatA.Player != 0 || seatA.MatchID == "" {
		t.Fatalf("first seat = %+v", seatA)
	}
	if seatA.MapSize != 8 || seatA.MaxTurns != 40 || seatA.RulesDigest == "" {
		t.Fatalf("seat params = %+v", seatA)
	}

	ms := l.Matches()
	if len(ms) != 1 || ms[0].Running {
		t.Fatalf("after one join: %+v", ms)
	}

	outB := make(chan []byte, 16)
	seatB, err := l.Join("bob", "", outB)
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if seatB.Player != 1 || seatB.MatchID != seatA.MatchID {
		t.Fatalf("second seat = %+v", seatB)
	}

	// Both seats get the opening observation once the match starts.
	for _, out := range []chan []byte{outA, outB} {
		var obs protocol.ObsMsg
		if err := json.Unmarshal(recv(t, out), &obs); err != nil {
			t.Fatalf("unmarshal obs: %v", err)
		}
		if obs.Type != protocol.TypeObs || obs.Turn != 0 || obs.MatchID != seatA.MatchID {
			t.Fatalf("opening obs = %+v", obs)
		}
	}

	ms = l.Matches()
	if len(ms) != 1 || !ms[0].Running || ms[0].Agents != [2]string{"alice", "bob"} {
		t.Fatalf("after pairing: %+v", ms)
	}
}

func TestJoinExplicitMatchID(t *testing.T) {
	l := newTestLobby(t, Config{})

	seatA, err := l.Join("alice", "", make(chan []byte, 16))
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	seatB, err := l.Join("bob", seatA.MatchID, make(chan []byte, 16))
	if err != nil {
		t.Fatalf("join by id: %v", err)
	}
	if seatB.MatchID != seatA.MatchID || seatB.Player != 1 {
		t.Fatalf("seat = %+v", seatB)
	}

	if _, err := l.Join("carol", "no-such-match", make(chan []byte, 16)); err != ErrMatchNotFound {
		t.Fatalf("unknown id error = %v", err)
	}
	if _, err := l.Join("carol", seatA.MatchID, make(chan []byte, 16)); err != ErrMatchFull {
		t.Fatalf("full match error = %v", err)
	}
}

func TestTwoPendingPairsFormTwoMatches(t *testing.T) {
	l := newTestLobby(t, Config{})

	a, _ := l.Join("a", "", make(chan []byte, 16))
	b, _ := l.Join("b", "", make(chan []byte, 16))
	c, _ := l.Join("c", "", make(chan []byte, 16))
	d, _ := l.Join("d", "", make(chan []byte, 16))

	if a.MatchID != b.MatchID || c.MatchID != d.MatchID {
		t.Fatalf("pairing order broken: %s/%s %s/%s", a.MatchID, b.MatchID, c.MatchID, d.MatchID)
	}
	if a.MatchID == c.MatchID {
		t.Fatalf("four agents landed in one match")
	}
	if a.Seed == c.Seed {
		t.Fatalf("matches share a map seed")
	}
}

func TestLeavePendingTearsDownMatch(t *testing.T) {
	dir := t.TempDir()
	l := newTestLobby(t, Config{DataDir: dir})

	seat, err := l.Join("alice", "", make(chan []byte, 16))
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	logPath := matchlog.MatchPath(dir, seat.MatchID)
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("log not created at open: %v", err)
	}

	l.Leave(seat)

	if ms := l.Matches(); len(ms) != 0 {
		t.Fatalf("pending match survived leave: %+v", ms)
	}
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Fatalf("canceled match left a log: %v", err)
	}

	// The next joiner opens a fresh match instead of pairing with a ghost.
	seat2, err := l.Join("bob", "", make(chan []byte, 16))
	if err != nil {
		t.Fatalf("join after cancel: %v", err)
	}
	if seat2.Player != 0 || seat2.MatchID == seat.MatchID {
		t.Fatalf("seat after cancel = %+v", seat2)
	}
}

func TestSpectateRunningMatch(t *testing.T) {
	l := newTestLobby(t, Config{})

	seatA, _ := l.Join("alice", "", make(chan []byte, 16))
	if _, _, err := l.Spectate(context.Background(), seatA.MatchID, make(chan []byte, 16)); err != ErrMatchNotFound {
		t.Fatalf("spectating a pending match: err = %v", err)
	}

	l.Join("bob", "", make(chan []byte, 16))

	specOut := make(chan []byte, 16)
	m, ar, err := l.Spectate(context.Background(), seatA.MatchID, specOut)
	if err != nil {
		t.Fatalf("spectate: %v", err)
	}
	var snap observerproto.SnapshotMsg
	if err := json.Unmarshal(ar.Snapshot, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.MatchID != seatA.MatchID || snap.Size != 8 {
		t.Fatalf("snapshot = %+v", snap)
	}
	l.Unspectate(m, ar.ID)

	if _, _, err := l.Spectate(context.Background(), "nope", specOut); err != ErrMatchNotFound {
		t.Fatalf("unknown match err = %v", err)
	}
}

func TestIndexReceivesMatchStart(t *testing.T) {
	dir := t.TempDir()
	idx, err := indexdb.OpenSQLite(dir + "/index.db")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	l := newTestLobby(t, Config{Index: idx, Seed: 7})
	seatA, _ := l.Join("alice", "", make(chan []byte, 16))
	l.Join("bob", "", make(chan []byte, 16))

	deadline := time.Now().Add(5 * time.Second)
	for {
		rows, err := idx.RecentMatches(5)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(rows) == 1 && rows[0].ID == seatA.MatchID {
			if rows[0].MapSize != 8 || rows[0].Seed != seatA.Seed {
				t.Fatalf("index row = %+v", rows[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("match row never indexed: %+v", rows)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseRefusesJoins(t *testing.T) {
	l := newTestLobby(t, Config{})
	l.Join("alice", "", make(chan []byte, 16))
	l.Join("bob", "", make(chan []byte, 16))

	l.Close()

	if ms := l.Matches(); len(ms) != 0 {
		t.Fatalf("matches after close: %+v", ms)
	}
	if _, err := l.Join("carol", "", make(chan []byte, 16)); err != ErrClosed {
		t.Fatalf("join after close: %v", err)
	}
}
