package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	matchlog "quantumharvest.ai/internal/persistence/log"
)

type MatchArchiveMeta struct {
	MatchID       string `json:"match_id"`
	Records       int    `json:"records"`
	Turns         int    `json:"turns"`
	Winner        int    `json:"winner"`
	Reason        string `json:"reason"`
	FinalDigest   string `json:"final_digest"`
	SourceBytes   int64  `json:"source_bytes"`
	ArchivedBytes int64  `json:"archived_bytes"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveMatchLog verifies the structure of a finished match log and
// rewrites it at best compression under `dataDir/archives/`. The source
// must open with an init record, carry contiguous turn records, and end
// with exactly one result record; a log that fails the check is left
// where it is and nothing is archived.
func ArchiveMatchLog(dataDir, logPath string) (string, MatchArchiveMeta, error) {
	var meta MatchArchiveMeta

	r, err := matchlog.OpenMatch(logPath)
	if err != nil {
		return "", meta, err
	}
	defer r.Close()

	srcInfo, err := os.Stat(logPath)
	if err != nil {
		return "", meta, err
	}

	archiveDir := filepath.Join(dataDir, "archives")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", meta, err
	}

	tmp, err := os.CreateTemp(archiveDir, "archive-*.tmp")
	if err != nil {
		return "", meta, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return "", meta, err
	}
	out := bufio.NewWriterSize(enc, 128*1024)

	var (
		sawResult bool
		turns     int
		result    matchlog.ResultRecord
	)
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", meta, err
		}
		if sawResult {
			return "", meta, fmt.Errorf("record after result at line %d", meta.Records+1)
		}

		switch kind := matchlog.RecordType(line); kind {
		case matchlog.RecordInit:
			if meta.Records != 0 {
				return "", meta, fmt.Errorf("init record at line %d", meta.Records+1)
			}
			var init matchlog.InitRecord
			if err := json.Unmarshal(line, &init); err != nil {
				return "", meta, fmt.Errorf("init record: %w", err)
			}
			meta.MatchID = init.MatchID
		case matchlog.RecordTurn:
			if meta.Records == 0 {
				return "", meta, fmt.Errorf("log does not start with an init record")
			}
			var tr matchlog.TurnRecord
			if err := json.Unmarshal(line, &tr); err != nil {
				return "", meta, fmt.Errorf("turn record: %w", err)
			}
			if tr.Turn != turns {
				return "", meta, fmt.Errorf("turn gap: record %d carries turn %d", turns, tr.Turn)
			}
			turns++
		case matchlog.RecordResult:
			if meta.Records == 0 {
				return "", meta, fmt.Errorf("log does not start with an init record")
			}
			if err := json.Unmarshal(line, &result); err != nil {
				return "", meta, fmt.Errorf("result record: %w", err)
			}
			sawResult = true
		default:
			return "", meta, fmt.Errorf("unknown record type %q at line %d", kind, meta.Records+1)
		}
		meta.Records++

		if _, err := out.Write(line); err != nil {
			return "", meta, err
		}
		if err := out.WriteByte('\n'); err != nil {
			return "", meta, err
		}
	}
	if meta.Records == 0 {
		return "", meta, fmt.Errorf("empty match log")
	}
	if !sawResult {
		return "", meta, fmt.Errorf("match log has no result record")
	}
	if result.Turns != turns {
		return "", meta, fmt.Errorf("result claims %d turns, log has %d", result.Turns, turns)
	}

	if err := out.Flush(); err != nil {
		return "", meta, err
	}
	if err := enc.Close(); err != nil {
		return "", meta, err
	}
	if err := tmp.Close(); err != nil {
		return "", meta, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(logPath))
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", meta, err
	}

	dstInfo, err := os.Stat(dst)
	if err != nil {
		return "", meta, err
	}

	meta.Turns = turns
	meta.Winner = result.Winner
	meta.Reason = result.Reason
	meta.FinalDigest = result.Digest
	meta.SourceBytes = srcInfo.Size()
	meta.ArchivedBytes = dstInfo.Size()
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		metaPath := strings.TrimSuffix(dst, ".jsonl.zst") + ".meta.json"
		_ = os.WriteFile(metaPath, b, 0o644)
	}

	return dst, meta, nil
}
