// Package lobby pairs incoming agents into matches. The first HELLO
// opens a pending match, the second fills seat 1 and starts the arena
// goroutine; spectators attach to running matches by id. The lobby
// owns the per-match ancillaries: the log writer and the index hooks.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"sort"
	"sync"
	"time"

	"quantumharvest.ai/internal/persistence/indexdb"
	matchlog "quantumharvest.ai/internal/persistence/log"
	"quantumharvest.ai/internal/sim/arena"
	"quantumharvest.ai/internal/sim/mapgen"
	"quantumharvest.ai/internal/sim/tuning"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchFull     = errors.New("match full")
	ErrMatchOver     = errors.New("match over")
	ErrClosed        = errors.New("lobby closed")
)

const (
	attachRequestTimeout = 3 * time.Second
	leaveSendTimeout     = 300 * time.Millisecond
)

type Config struct {
	Rules tuning.Rules

	// Seed is the base for per-match map seeds (base + sequence number);
	// zero derives the base from the clock.
	Seed int64

	TurnTimeout    time.Duration
	MaxAbsentTurns int

	// DataDir is where match logs land (under DataDir/matches). Empty
	// disables match logging.
	DataDir string

	Index  *indexdb.SQLiteIndex
	Logger *stdlog.Logger
}

// Seat is everything the transport needs to speak for one agent:
// the assigned player index, the match handle, and the WELCOME
// parameters.
type Seat struct {
	MatchID     string
	Player      int
	Match       *arena.Match
	MapSize     int
	MaxTurns    int
	TurnTimeout time.Duration
	Seed        int64
	RulesDigest string
}

type entry struct {
	match   *arena.Match
	writer  *matchlog.MatchWriter
	agents  [2]string
	seed    int64
	running bool
}

type Lobby struct {
	cfg  Config
	lg   *stdlog.Logger
	born int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	matches map[string]*entry
	openID  string
	seq     int64
	closed  bool
}

func New(cfg Config) *Lobby {
	if cfg.Rules.MapSize == 0 {
		cfg.Rules = tuning.Default()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Logger == nil {
		cfg.Logger = stdlog.New(io.Discard, "", 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Lobby{
		cfg:     cfg,
		lg:      cfg.Logger,
		born:    time.Now().Unix(),
		ctx:     ctx,
		cancel:  cancel,
		matches: map[string]*entry{},
	}
}

// Join seats an agent. With an empty matchID the agent lands in the
// open pending match, or opens a new one; with an explicit matchID it
// takes seat 1 of that pending match. The second seat starts the match.
func (l *Lobby) Join(name, matchID string, out chan []byte) (Seat, error) {
	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()
		return Seat{}, ErrClosed
	}

	id := matchID
	if id == "" {
		id = l.openID
	}

	if id == "" {
		e, mid, err := l.openMatchLocked(name, out)
		l.mu.Unlock()
		if err != nil {
			return Seat{}, err
		}
		l.lg.Printf("lobby: %s opened match %s", name, mid)
		return l.seatFor(e, mid, 0), nil
	}

	e := l.matches[id]
	if e == nil {
		l.mu.Unlock()
		return Seat{}, ErrMatchNotFound
	}
	if e.running {
		l.mu.Unlock()
		return Seat{}, ErrMatchFull
	}
	e.agents[1] = name
	e.running = true
	if l.openID == id {
		l.openID = ""
	}
	l.wg.Add(1)
	l.mu.Unlock()

	e.match.SeatAgent(1, name, out)
	if l.cfg.Index != nil {
		now := time.Now()
		logPath := ""
		if e.writer != nil {
			logPath = e.writer.Path()
		}
		l.cfg.Index.MatchStarted(indexdb.MatchStart{
			ID:        id,
			StartedAt: now,
			MapSize:   l.cfg.Rules.MapSize,
			Seed:      e.seed,
			MaxTurns:  l.cfg.Rules.MaxTurns,
			LogPath:   logPath,
		})
		l.cfg.Index.SeatJoined(id, 0, e.agents[0])
		l.cfg.Index.SeatJoined(id, 1, name)
	}
	go l.runMatch(e)

	l.lg.Printf("lobby: %s filled match %s, starting", name, id)
	return l.seatFor(e, id, 1), nil
}

// openMatchLocked rolls a board and registers the pending match.
// Callers hold l.mu.
func (l *Lobby) openMatchLocked(name string, out chan []byte) (*entry, string, error) {
	l.seq++
	id := fmt.Sprintf("m%d-%03d", l.born, l.seq)
	seed := l.cfg.Seed + l.seq

	setup, err := mapgen.Generate(l.cfg.Rules.MapSize, seed, l.cfg.Rules)
	if err != nil {
		return nil, "", fmt.Errorf("generate map: %w", err)
	}

	var writer *matchlog.MatchWriter
	if l.cfg.DataDir != "" {
		writer, err = matchlog.NewMatchWriter(l.cfg.DataDir, id)
		if err != nil {
			// The match can still run in memory.
			l.lg.Printf("lobby: match log for %s: %v", id, err)
			writer = nil
		}
	}

	ac := arena.Config{
		MatchID:        id,
		Setup:          setup,
		Rules:          l.cfg.Rules,
		Seed:           seed,
		TurnTimeout:    l.cfg.TurnTimeout,
		MaxAbsentTurns: l.cfg.MaxAbsentTurns,
		Logger:         l.lg,
	}
	if writer != nil {
		ac.Log = writer
	}
	if l.cfg.Index != nil {
		ac.Index = l.cfg.Index
	}
	m, err := arena.New(ac)
	if err != nil {
		if writer != nil {
			writer.Close()
			os.Remove(writer.Path())
		}
		return nil, "", err
	}
	m.SeatAgent(0, name, out)

	e := &entry{match: m, writer: writer, seed: seed}
	e.agents[0] = name
	l.matches[id] = e
	l.openID = id
	return e, id, nil
}

func (l *Lobby) seatFor(e *entry, id string, player int) Seat {
	return Seat{
		MatchID:     id,
		Player:      player,
		Match:       e.match,
		MapSize:     l.cfg.Rules.MapSize,
		MaxTurns:    l.cfg.Rules.MaxTurns,
		TurnTimeout: e.match.TurnTimeout(),
		Seed:        e.seed,
		RulesDigest: l.cfg.Rules.Digest(),
	}
}

func (l *Lobby) runMatch(e *entry) {
	defer l.wg.Done()
	id := e.match.MatchID()

	if err := e.match.Run(l.ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.lg.Printf("lobby: match %s run: %v", id, err)
	}
	if e.writer != nil {
		if err := e.writer.Close(); err != nil {
			l.lg.Printf("lobby: close log for %s: %v", id, err)
		}
	}

	l.mu.Lock()
	delete(l.matches, id)
	l.mu.Unlock()
}

// Spectate attaches a read-only feed to a running match. The returned
// response carries the snapshot to send before streamed updates.
func (l *Lobby) Spectate(ctx context.Context, matchID string, out chan []byte) (*arena.Match, arena.AttachResponse, error) {
	l.mu.RLock()
	e := l.matches[matchID]
	var m *arena.Match
	running := false
	if e != nil {
		m, running = e.match, e.running
	}
	l.mu.RUnlock()

	if m == nil || !running {
		return nil, arena.AttachResponse{}, ErrMatchNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, attachRequestTimeout)
	defer cancel()

	resp := make(chan arena.AttachResponse, 1)
	select {
	case m.Attach() <- arena.AttachRequest{Out: out, Resp: resp}:
	case <-m.Done():
		return nil, arena.AttachResponse{}, ErrMatchOver
	case <-ctx.Done():
		return nil, arena.AttachResponse{}, ctx.Err()
	}
	select {
	case ar := <-resp:
		return m, ar, nil
	case <-m.Done():
		return nil, arena.AttachResponse{}, ErrMatchOver
	case <-ctx.Done():
		return nil, arena.AttachResponse{}, ctx.Err()
	}
}

// Unspectate detaches a spectator feed.
func (l *Lobby) Unspectate(m *arena.Match, id int) {
	if m == nil {
		return
	}
	select {
	case m.Detach() <- id:
	case <-m.Done():
	}
}

// Leave releases a seat. A pending match whose opener leaves is torn
// down; a running match keeps playing and the seat forfeits by
// absence.
func (l *Lobby) Leave(seat Seat) {
	if seat.Match == nil {
		return
	}
	id := seat.Match.MatchID()

	l.mu.Lock()
	e := l.matches[id]
	if e != nil && !e.running {
		delete(l.matches, id)
		if l.openID == id {
			l.openID = ""
		}
		l.mu.Unlock()
		if e.writer != nil {
			e.writer.Close()
			os.Remove(e.writer.Path())
		}
		l.lg.Printf("lobby: match %s canceled before start", id)
		return
	}
	l.mu.Unlock()

	timer := time.NewTimer(leaveSendTimeout)
	defer timer.Stop()
	select {
	case seat.Match.Leave() <- seat.Player:
	case <-seat.Match.Done():
	case <-timer.C:
	}
}

type MatchInfo struct {
	ID      string
	Agents  [2]string
	Running bool
}

func (l *Lobby) Matches() []MatchInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]MatchInfo, 0, len(l.matches))
	for id, e := range l.matches {
		out = append(out, MatchInfo{ID: id, Agents: e.agents, Running: e.running})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close refuses new joins, aborts running matches, and waits for their
// goroutines. Pending matches are discarded.
func (l *Lobby) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	var pending []*entry
	for id, e := range l.matches {
		if !e.running {
			pending = append(pending, e)
			delete(l.matches, id)
		}
	}
	l.openID = ""
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()

	for _, e := range pending {
		if e.writer != nil {
			e.writer.Close()
			os.Remove(e.writer.Path())
		}
	}
}
