package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/game"
	"quantumharvest.ai/internal/sim/tuning"
)

// Record discriminators; the first JSON field of every log line.
const (
	RecordInit   = "init"
	RecordTurn   = "turn"
	RecordResult = "result"
)

// InitRecord is the first line of a match log. Setup plus Rules are
// everything a replay needs to rebuild the engine; Grid duplicates the
// tile kinds as an RLE scan for tools that only want the geometry.
type InitRecord struct {
	Type      string       `json:"type"`
	MatchID   string       `json:"match_id"`
	StartedAt string       `json:"started_at"`
	Setup     game.Setup   `json:"setup"`
	Grid      string       `json:"grid,omitempty"`
	Rules     tuning.Rules `json:"rules"`
	Digest    string       `json:"digest"`
}

// TurnRecord captures one resolved turn: the raw submitted orders per
// seat (not the deduplicated batch), the events they produced, and the
// post-turn state digest.
type TurnRecord struct {
	Type   string                 `json:"type"`
	Turn   int                    `json:"turn"`
	Orders [2][]protocol.OrderReq `json:"orders"`
	Events []protocol.Event       `json:"events,omitempty"`
	Digest string                 `json:"digest"`
}

// ResultRecord is the final line of a match log.
type ResultRecord struct {
	Type   string `json:"type"`
	Turns  int    `json:"turns"`
	Winner int    `json:"winner"`
	Reason string `json:"reason"`
	Digest string `json:"digest"`
}

// RecordType sniffs the discriminator of a raw log line.
func RecordType(line []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return ""
	}
	return head.Type
}

// MatchPath is the canonical log location for a match id under a data dir.
func MatchPath(dataDir, matchID string) string {
	return filepath.Join(dataDir, "matches", fmt.Sprintf("match-%s.jsonl.zst", matchID))
}

// MatchWriter appends JSONL records to a zstd-compressed per-match file.
// One writer owns one match; Write is safe for concurrent use.
type MatchWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewMatchWriter(dataDir, matchID string) (*MatchWriter, error) {
	path := MatchPath(dataDir, matchID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &MatchWriter{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

func (w *MatchWriter) Path() string { return w.path }

func (w *MatchWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return errors.New("match log closed")
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *MatchWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// MatchReader streams raw lines out of a compressed match log.
type MatchReader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

func OpenMatch(path string) (*MatchReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &MatchReader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the next log line, or io.EOF after the last one. The
// returned slice is only valid until the following call.
func (r *MatchReader) Next() ([]byte, error) {
	if r.sc.Scan() {
		return r.sc.Bytes(), nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *MatchReader) Close() {
	r.dec.Close()
	_ = r.f.Close()
}
