// Package arena runs matches. One goroutine owns one match: it
// broadcasts observations to both seats, collects their order batches,
// steps the engine when both batches arrive or the turn deadline
// lapses, and streams per-turn summaries to attached spectators.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"sync"
	"time"

	"quantumharvest.ai/internal/observerproto"
	"quantumharvest.ai/internal/persistence/indexdb"
	matchlog "quantumharvest.ai/internal/persistence/log"
	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/encoding"
	"quantumharvest.ai/internal/sim/game"
	"quantumharvest.ai/internal/sim/tuning"
)

// MatchLog persists match log records. A nil MatchLog keeps the match
// in memory only.
type MatchLog interface {
	Write(v any) error
}

// Index receives match index rows. A nil Index drops them.
type Index interface {
	WriteTurn(indexdb.TurnStat)
	MatchFinished(indexdb.MatchResult)
}

// ActEnvelope carries one seat's ACT message into the match loop.
type ActEnvelope struct {
	Seat int
	Msg  protocol.ActMsg
}

// AttachRequest subscribes a spectator feed. Resp must be buffered so
// the match loop never blocks on the reply.
type AttachRequest struct {
	Out  chan []byte
	Resp chan AttachResponse
}

// AttachResponse carries the spectator id (pass it to Detach) and the
// marshaled full-state snapshot to send before streamed updates.
type AttachResponse struct {
	ID       int
	Snapshot []byte
}

type Config struct {
	MatchID string
	Setup   game.Setup
	Rules   tuning.Rules
	Seed    int64

	// TurnTimeout is the ACT collection window per turn; a seat that
	// misses it plays an empty batch.
	TurnTimeout time.Duration

	// MaxAbsentTurns is the number of consecutive empty-by-silence turns
	// before a seat forfeits.
	MaxAbsentTurns int

	Log    MatchLog
	Index  Index
	Logger *stdlog.Logger
}

type seatState struct {
	name string
	out  chan []byte
	gone bool
}

// Match is one running game plus its seats and spectators. All state
// behind the channels belongs to the Run goroutine.
type Match struct {
	cfg Config
	g   *game.Game
	lg  *stdlog.Logger

	seats [2]seatState

	inbox    chan ActEnvelope
	attach   chan AttachRequest
	detach   chan int
	leave    chan int
	stop     chan struct{}
	stopOnce sync.Once

	spectators map[int]chan []byte
	nextSpec   int

	pending [2][]protocol.OrderReq
	got     [2]bool
	absent  [2]int

	done      chan struct{}
	result    protocol.ResultMsg
	hasResult bool
}

func New(cfg Config) (*Match, error) {
	if cfg.MatchID == "" {
		return nil, errors.New("empty match id")
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 5 * time.Second
	}
	if cfg.MaxAbsentTurns <= 0 {
		cfg.MaxAbsentTurns = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = stdlog.New(io.Discard, "", 0)
	}
	g, err := game.New(cfg.Setup, cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", cfg.MatchID, err)
	}
	return &Match{
		cfg:        cfg,
		g:          g,
		lg:         cfg.Logger,
		inbox:      make(chan ActEnvelope, 64),
		attach:     make(chan AttachRequest, 16),
		detach:     make(chan int, 16),
		leave:      make(chan int, 4),
		stop:       make(chan struct{}),
		spectators: map[int]chan []byte{},
		done:       make(chan struct{}),
	}, nil
}

// SeatAgent wires one seat's outbound channel. Both seats must be
// wired before Run starts; seats cannot change afterwards.
func (m *Match) SeatAgent(seat int, name string, out chan []byte) error {
	if seat < 0 || seat > 1 {
		return fmt.Errorf("bad seat %d", seat)
	}
	m.seats[seat] = seatState{name: name, out: out}
	return nil
}

func (m *Match) MatchID() string { return m.cfg.MatchID }

// TurnTimeout reports the normalized ACT collection window.
func (m *Match) TurnTimeout() time.Duration { return m.cfg.TurnTimeout }

// Channel accessors. After Done is closed the loop no longer drains
// these; senders must select on Done as well.
func (m *Match) Inbox() chan<- ActEnvelope     { return m.inbox }
func (m *Match) Attach() chan<- AttachRequest  { return m.attach }
func (m *Match) Detach() chan<- int            { return m.detach }
func (m *Match) Leave() chan<- int             { return m.leave }

func (m *Match) Done() <-chan struct{} { return m.done }

func (m *Match) Stop() { m.stopOnce.Do(func() { close(m.stop) }) }

// Result returns the final RESULT message once Done is closed.
func (m *Match) Result() (protocol.ResultMsg, bool) {
	select {
	case <-m.done:
		return m.result, m.hasResult
	default:
		return protocol.ResultMsg{}, false
	}
}

func (m *Match) Run(ctx context.Context) error {
	defer close(m.done)

	m.lg.Printf("match %s: %s vs %s, size=%d seed=%d",
		m.cfg.MatchID, m.seats[0].name, m.seats[1].name, m.cfg.Setup.Size, m.cfg.Seed)
	m.writeInit()
	m.broadcastObs(nil, false)

	timer := time.NewTimer(m.cfg.TurnTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.lg.Printf("match %s: aborted: %v", m.cfg.MatchID, ctx.Err())
			return ctx.Err()
		case <-m.stop:
			return nil
		case req := <-m.attach:
			m.handleAttach(req)
		case id := <-m.detach:
			delete(m.spectators, id)
		case seat := <-m.leave:
			if seat == 0 || seat == 1 {
				m.seats[seat].gone = true
				m.seats[seat].out = nil
				m.lg.Printf("match %s: seat %d left", m.cfg.MatchID, seat)
			}
		case env := <-m.inbox:
			if !m.acceptAct(env) {
				continue
			}
			if m.got[0] && m.got[1] {
				if m.resolveTurn() {
					return nil
				}
				resetTimer(timer, m.cfg.TurnTimeout)
			}
		case <-timer.C:
			if m.resolveTurn() {
				return nil
			}
			timer.Reset(m.cfg.TurnTimeout)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (m *Match) acceptAct(env ActEnvelope) bool {
	if env.Seat < 0 || env.Seat > 1 {
		return false
	}
	if env.Msg.Turn != m.g.Turn() {
		m.sendError(env.Seat, protocol.ErrBadTurn, fmt.Sprintf("expected turn %d", m.g.Turn()))
		return false
	}
	// A second ACT for the same turn replaces the first.
	m.pending[env.Seat] = env.Msg.Orders
	m.got[env.Seat] = true
	return true
}

// resolveTurn steps the engine with whatever arrived and reports true
// when the match is over.
func (m *Match) resolveTurn() bool {
	turn := m.g.Turn()
	orders := m.pending
	events, done, victor := m.g.Step(game.BatchFromOrders(orders[0]), game.BatchFromOrders(orders[1]))
	digest := m.g.Digest()

	for seat := range m.seats {
		if m.got[seat] {
			m.absent[seat] = 0
		} else {
			m.absent[seat]++
		}
	}
	m.pending = [2][]protocol.OrderReq{}
	m.got = [2]bool{}

	if m.cfg.Log != nil {
		rec := matchlog.TurnRecord{
			Type:   matchlog.RecordTurn,
			Turn:   turn,
			Orders: orders,
			Events: events,
			Digest: digest,
		}
		if err := m.cfg.Log.Write(rec); err != nil {
			m.lg.Printf("match %s: turn log: %v", m.cfg.MatchID, err)
		}
	}
	if m.cfg.Index != nil {
		m.cfg.Index.WriteTurn(indexdb.TurnStat{
			MatchID: m.cfg.MatchID,
			Turn:    turn,
			Orders:  len(orders[0]) + len(orders[1]),
			Events:  len(events),
			Digest:  digest,
		})
	}

	if done {
		m.conclude(turn, protocol.ResultMsg{
			Type:            protocol.TypeResult,
			ProtocolVersion: protocol.Version,
			MatchID:         m.cfg.MatchID,
			Turns:           m.g.Turn(),
			Winner:          victor,
			Reason:          m.g.Reason(),
			Digest:          digest,
		}, events)
		return true
	}

	if m.absent[0] >= m.cfg.MaxAbsentTurns || m.absent[1] >= m.cfg.MaxAbsentTurns {
		m.conclude(turn, m.forfeitResult(digest), events)
		return true
	}

	// Spectators first: once a seat sees its observation for this turn,
	// the spectator update is already on its way.
	m.spectatorUpdate(turn, events, digest, nil)
	m.broadcastObs(events, false)
	return false
}

// forfeitResult decides the forfeit outcome: the seat that kept playing
// wins; two silent seats draw. The engine state is left as-is.
func (m *Match) forfeitResult(digest string) protocol.ResultMsg {
	f0 := m.absent[0] >= m.cfg.MaxAbsentTurns
	f1 := m.absent[1] >= m.cfg.MaxAbsentTurns
	winner := -1
	switch {
	case f0 && f1:
		winner = -1
	case f0:
		winner = 1
	case f1:
		winner = 0
	}
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		MatchID:         m.cfg.MatchID,
		Turns:           m.g.Turn(),
		Winner:          winner,
		Reason:          protocol.ReasonForfeit,
		Digest:          digest,
	}
}

func (m *Match) conclude(turn int, res protocol.ResultMsg, events []protocol.Event) {
	m.spectatorUpdate(turn, events, res.Digest, &res)
	m.broadcastObs(events, true)

	if b, err := json.Marshal(res); err == nil {
		for seat := range m.seats {
			if out := m.seats[seat].out; out != nil && !m.seats[seat].gone {
				sendLatest(out, b)
			}
		}
	}

	if m.cfg.Log != nil {
		rec := matchlog.ResultRecord{
			Type:   matchlog.RecordResult,
			Turns:  res.Turns,
			Winner: res.Winner,
			Reason: res.Reason,
			Digest: res.Digest,
		}
		if err := m.cfg.Log.Write(rec); err != nil {
			m.lg.Printf("match %s: result log: %v", m.cfg.MatchID, err)
		}
	}
	if m.cfg.Index != nil {
		m.cfg.Index.MatchFinished(indexdb.MatchResult{
			ID:          m.cfg.MatchID,
			FinishedAt:  time.Now(),
			Turns:       res.Turns,
			Winner:      res.Winner,
			Reason:      res.Reason,
			FinalDigest: res.Digest,
		})
	}

	m.result = res
	m.hasResult = true
	m.lg.Printf("match %s: finished turns=%d winner=%d reason=%s",
		m.cfg.MatchID, res.Turns, res.Winner, res.Reason)
}

func (m *Match) writeInit() {
	if m.cfg.Log == nil {
		return
	}
	rec := matchlog.InitRecord{
		Type:      matchlog.RecordInit,
		MatchID:   m.cfg.MatchID,
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Setup:     m.cfg.Setup,
		Grid:      encoding.EncodeRLE(m.flatKinds()),
		Rules:     m.cfg.Rules,
		Digest:    m.g.Digest(),
	}
	if err := m.cfg.Log.Write(rec); err != nil {
		m.lg.Printf("match %s: init log: %v", m.cfg.MatchID, err)
	}
}

func (m *Match) broadcastObs(events []protocol.Event, final bool) {
	for seat := range m.seats {
		s := m.seats[seat]
		if s.out == nil || s.gone {
			continue
		}
		obs := m.g.Observe(seat)
		obs.MatchID = m.cfg.MatchID
		obs.Events = eventsForSeat(events, seat)
		if final {
			obs.Done = true
		}
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		sendLatest(s.out, b)
	}
}

func (m *Match) spectatorUpdate(turn int, events []protocol.Event, digest string, res *protocol.ResultMsg) {
	if len(m.spectators) == 0 {
		return
	}
	upd := observerproto.UpdateMsg{
		Type:            observerproto.TypeUpdate,
		ProtocolVersion: observerproto.Version,
		MatchID:         m.cfg.MatchID,
		Turn:            turn,
		Energy:          [2]int{m.g.Energy(0), m.g.Energy(1)},
		Territory:       [2]float64{m.g.Territory(0), m.g.Territory(1)},
		Digest:          digest,
		Units:           m.unitStates(),
		Events:          events,
		Winner:          -1,
	}
	if res != nil {
		upd.Done = true
		upd.Winner = res.Winner
		upd.Reason = res.Reason
	}
	b, err := json.Marshal(upd)
	if err != nil {
		return
	}
	for _, ch := range m.spectators {
		sendLatest(ch, b)
	}
}

func (m *Match) handleAttach(req AttachRequest) {
	if req.Out == nil {
		if req.Resp != nil {
			req.Resp <- AttachResponse{ID: -1}
		}
		return
	}
	id := m.nextSpec
	m.nextSpec++
	m.spectators[id] = req.Out
	snap, err := json.Marshal(m.observerSnapshot())
	if err != nil {
		snap = nil
	}
	if req.Resp != nil {
		req.Resp <- AttachResponse{ID: id, Snapshot: snap}
	}
}

func (m *Match) observerSnapshot() observerproto.SnapshotMsg {
	return observerproto.SnapshotMsg{
		Type:            observerproto.TypeSnapshot,
		ProtocolVersion: observerproto.Version,
		MatchID:         m.cfg.MatchID,
		Turn:            m.g.Turn(),
		Size:            m.g.Board().Size(),
		Encoding:        "RLE",
		Grid:            encoding.EncodeRLE(m.flatKinds()),
		Units:           m.unitStates(),
		Energy:          [2]int{m.g.Energy(0), m.g.Energy(1)},
		Territory:       [2]float64{m.g.Territory(0), m.g.Territory(1)},
		Done:            m.g.Done(),
	}
}

func (m *Match) flatKinds() []uint8 {
	kinds := m.g.Board().ExportKinds()
	flat := make([]uint8, len(kinds))
	for i, k := range kinds {
		flat[i] = uint8(k)
	}
	return flat
}

func (m *Match) unitStates() []protocol.UnitObs {
	reg := m.g.Units()
	ids := reg.IDs()
	out := make([]protocol.UnitObs, 0, len(ids))
	for _, id := range ids {
		u := reg.Get(id)
		out = append(out, protocol.UnitObs{
			ID:               u.ID,
			Owner:            u.Owner,
			Kind:             int(u.Kind),
			X:                u.Pos.X,
			Y:                u.Pos.Y,
			Health:           u.Health,
			Boosted:          u.Boosted,
			AttacksRemaining: u.AttacksRemaining,
		})
	}
	return out
}

func (m *Match) sendError(seat int, code, msg string) {
	out := m.seats[seat].out
	if out == nil || m.seats[seat].gone {
		return
	}
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	})
	if err != nil {
		return
	}
	sendLatest(out, b)
}

// eventsForSeat keeps an observer's own actions plus events without a
// player tag (RESULT). Opponent actions are never streamed; agents
// learn about the enemy through the observation itself.
func eventsForSeat(events []protocol.Event, seat int) []protocol.Event {
	out := make([]protocol.Event, 0, len(events))
	for _, ev := range events {
		if p, ok := ev["player"].(int); ok {
			if p == seat {
				out = append(out, ev)
			}
			continue
		}
		out = append(out, ev)
	}
	return out
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
