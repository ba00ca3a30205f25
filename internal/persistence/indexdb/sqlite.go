package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is a queryable secondary index over finished and running
// matches. Writes go through a buffered channel into a single writer
// goroutine; when the queue is full, writes are dropped — the JSONL
// match logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropMatch  atomic.Uint64
	dropSeat   atomic.Uint64
	dropTurn   atomic.Uint64
	dropResult atomic.Uint64
}

type reqKind int

const (
	reqMatch reqKind = iota + 1
	reqSeat
	reqTurn
	reqResult
)

type req struct {
	kind reqKind

	match  MatchStart
	seat   seatRow
	turn   TurnStat
	result MatchResult
}

// MatchStart describes a match at creation time.
type MatchStart struct {
	ID        string
	StartedAt time.Time
	MapSize   int
	Seed      int64
	MaxTurns  int
	LogPath   string
}

type seatRow struct {
	MatchID  string
	Seat     int
	Agent    string
	JoinedAt string
}

// TurnStat is the per-turn index row: counts plus the state digest, so
// a digest can be looked up without decompressing the log.
type TurnStat struct {
	MatchID string
	Turn    int
	Orders  int
	Events  int
	Digest  string
}

// MatchResult finalizes a match row.
type MatchResult struct {
	ID          string
	FinishedAt  time.Time
	Turns       int
	Winner      int
	Reason      string
	FinalDigest string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			map_size INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			max_turns INTEGER NOT NULL,
			turns INTEGER,
			winner INTEGER,
			reason TEXT,
			final_digest TEXT,
			log_path TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_started_at ON matches(started_at);`,
		`CREATE TABLE IF NOT EXISTS seats (
			match_id TEXT NOT NULL,
			seat INTEGER NOT NULL,
			agent TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			PRIMARY KEY (match_id, seat)
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			match_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			orders INTEGER NOT NULL,
			events INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (match_id, turn)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req, dropped *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		dropped.Add(1)
	}
}

func (s *SQLiteIndex) MatchStarted(m MatchStart) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqMatch, match: m}, &s.dropMatch)
}

func (s *SQLiteIndex) SeatJoined(matchID string, seat int, agent string) {
	if s == nil {
		return
	}
	r := seatRow{
		MatchID:  matchID,
		Seat:     seat,
		Agent:    agent,
		JoinedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqSeat, seat: r}, &s.dropSeat)
}

func (s *SQLiteIndex) WriteTurn(t TurnStat) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqTurn, turn: t}, &s.dropTurn)
}

func (s *SQLiteIndex) MatchFinished(res MatchResult) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqResult, result: res}, &s.dropResult)
}

// Stats reports queue pressure and drop totals.
type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropMatchTotal  uint64
	DropSeatTotal   uint64
	DropTurnTotal   uint64
	DropResultTotal uint64
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropMatchTotal:  s.dropMatch.Load(),
		DropSeatTotal:   s.dropSeat.Load(),
		DropTurnTotal:   s.dropTurn.Load(),
		DropResultTotal: s.dropResult.Load(),
	}
}

// MatchRow is one row of the matches table. FinishedAt is empty and
// Turns/Winner/Reason/FinalDigest hold zero values while the match is
// still running.
type MatchRow struct {
	ID          string
	StartedAt   string
	FinishedAt  string
	MapSize     int
	Seed        int64
	MaxTurns    int
	Turns       int
	Winner      int
	Reason      string
	FinalDigest string
	LogPath     string
}

// RecentMatches returns up to limit matches, newest first. It queries
// the db directly, so rows still sitting in the write queue are not
// visible yet.
func (s *SQLiteIndex) RecentMatches(limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, map_size, seed, max_turns,
		       turns, winner, reason, final_digest, log_path
		FROM matches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var (
			r        MatchRow
			finished sql.NullString
			turns    sql.NullInt64
			winner   sql.NullInt64
			reason   sql.NullString
			digest   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.MapSize, &r.Seed,
			&r.MaxTurns, &turns, &winner, &reason, &digest, &r.LogPath); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.String
		r.Turns = int(turns.Int64)
		r.Winner = int(winner.Int64)
		r.Reason = reason.String
		r.FinalDigest = digest.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// TurnDigest looks up the recorded digest of one turn.
func (s *SQLiteIndex) TurnDigest(matchID string, turn int) (string, error) {
	var digest string
	row := s.db.QueryRow(`SELECT digest FROM turns WHERE match_id=? AND turn=?`, matchID, turn)
	if err := row.Scan(&digest); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO matches(id,started_at,map_size,seed,max_turns,log_path) VALUES(?,?,?,?,?,?)`)
	insertSeat, _ := s.db.Prepare(`INSERT OR REPLACE INTO seats(match_id,seat,agent,joined_at) VALUES(?,?,?,?)`)
	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(match_id,turn,orders,events,digest) VALUES(?,?,?,?,?)`)
	finishMatch, _ := s.db.Prepare(`UPDATE matches SET finished_at=?,turns=?,winner=?,reason=?,final_digest=? WHERE id=?`)
	defer func() {
		if insertMatch != nil {
			_ = insertMatch.Close()
		}
		if insertSeat != nil {
			_ = insertSeat.Close()
		}
		if insertTurn != nil {
			_ = insertTurn.Close()
		}
		if finishMatch != nil {
			_ = finishMatch.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// Commit on batch size, flush window, or an empty queue. An idle
		// open tx would pin the single connection and starve readers.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqMatch:
			m := r.match
			if insertMatch != nil {
				if _, err := tx.Stmt(insertMatch).Exec(
					m.ID,
					m.StartedAt.UTC().Format(time.RFC3339Nano),
					m.MapSize,
					m.Seed,
					m.MaxTurns,
					m.LogPath,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSeat:
			st := r.seat
			if insertSeat != nil {
				if _, err := tx.Stmt(insertSeat).Exec(st.MatchID, st.Seat, st.Agent, st.JoinedAt); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqTurn:
			t := r.turn
			if insertTurn != nil {
				if _, err := tx.Stmt(insertTurn).Exec(t.MatchID, t.Turn, t.Orders, t.Events, t.Digest); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqResult:
			res := r.result
			if finishMatch != nil {
				if _, err := tx.Stmt(finishMatch).Exec(
					res.FinishedAt.UTC().Format(time.RFC3339Nano),
					res.Turns,
					res.Winner,
					res.Reason,
					res.FinalDigest,
					res.ID,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
