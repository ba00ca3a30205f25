package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"quantumharvest.ai/internal/persistence/archive"
	matchlog "quantumharvest.ai/internal/persistence/log"
	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/game"
)

func main() {
	var (
		logPath   = flag.String("log", "", "path to match-*.jsonl.zst")
		doArchive = flag.Bool("archive", false, "recompress the verified log under <data-dir>/archives")
		dataDir   = flag.String("data-dir", "./data", "runtime data directory (archive destination)")
	)
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}

	if err := verify(*logPath); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	if *doArchive {
		dst, meta, err := archive.ArchiveMatchLog(*dataDir, *logPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "archive:", err)
			os.Exit(1)
		}
		fmt.Printf("archived %s -> %s (%d -> %d bytes)\n",
			filepath.Base(*logPath), dst, meta.SourceBytes, meta.ArchivedBytes)
	}
}

// verify replays the logged orders through a fresh engine and compares
// the state digest after every turn plus the final result. Forfeits are
// decided by the arena, not the engine, so a forfeit log is accepted
// with the engine still unfinished.
func verify(path string) error {
	r, err := matchlog.OpenMatch(path)
	if err != nil {
		return err
	}
	defer r.Close()

	line, err := r.Next()
	if err != nil {
		return fmt.Errorf("read init record: %w", err)
	}
	if matchlog.RecordType(line) != matchlog.RecordInit {
		return fmt.Errorf("log does not start with an init record")
	}
	var init matchlog.InitRecord
	if err := json.Unmarshal(line, &init); err != nil {
		return fmt.Errorf("init record: %w", err)
	}

	g, err := game.New(init.Setup, init.Rules)
	if err != nil {
		return fmt.Errorf("rebuild engine: %w", err)
	}
	if init.Digest != "" && g.Digest() != init.Digest {
		return fmt.Errorf("initial digest mismatch: got=%s want=%s", g.Digest(), init.Digest)
	}

	fmt.Printf("match %s size=%d seed=%d max_turns=%d\n",
		init.MatchID, init.Setup.Size, init.Setup.Seed, init.Rules.MaxTurns)

	var (
		checked int
		result  *matchlog.ResultRecord
	)
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch kind := matchlog.RecordType(line); kind {
		case matchlog.RecordTurn:
			if result != nil {
				return fmt.Errorf("turn record after result")
			}
			var tr matchlog.TurnRecord
			if err := json.Unmarshal(line, &tr); err != nil {
				return fmt.Errorf("turn record: %w", err)
			}
			if tr.Turn != g.Turn() {
				return fmt.Errorf("turn mismatch: want=%d got=%d", g.Turn(), tr.Turn)
			}
			g.Step(game.BatchFromOrders(tr.Orders[0]), game.BatchFromOrders(tr.Orders[1]))
			if got := g.Digest(); got != tr.Digest {
				return fmt.Errorf("digest mismatch at turn %d: got=%s want=%s", tr.Turn, got, tr.Digest)
			}
			checked++
		case matchlog.RecordResult:
			var res matchlog.ResultRecord
			if err := json.Unmarshal(line, &res); err != nil {
				return fmt.Errorf("result record: %w", err)
			}
			result = &res
		case matchlog.RecordInit:
			return fmt.Errorf("second init record after turn %d", checked)
		default:
			return fmt.Errorf("unknown record type %q", kind)
		}
	}

	if result == nil {
		return fmt.Errorf("log has no result record")
	}
	if result.Turns != checked {
		return fmt.Errorf("result claims %d turns, log has %d", result.Turns, checked)
	}
	if got := g.Digest(); got != result.Digest {
		return fmt.Errorf("final digest mismatch: got=%s want=%s", got, result.Digest)
	}
	switch {
	case g.Done():
		if g.Victor() != result.Winner || g.Reason() != result.Reason {
			return fmt.Errorf("result mismatch: engine winner=%d reason=%s, log winner=%d reason=%s",
				g.Victor(), g.Reason(), result.Winner, result.Reason)
		}
	case result.Reason == protocol.ReasonForfeit:
		// Logged forfeits stand on their own.
	default:
		return fmt.Errorf("engine not finished after %d turns but log reason is %q", checked, result.Reason)
	}

	fmt.Printf("replay ok: checked=%d turns winner=%d reason=%s\n", checked, result.Winner, result.Reason)
	return nil
}
