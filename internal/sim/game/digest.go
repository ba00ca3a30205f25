package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Digest fingerprints the complete match state. Two engines fed the
// same setup, rules, and batches produce the same digest after every
// turn; the replay verifier leans on this. All multi-byte values are
// written little-endian and collections in fixed or sorted order.
func (g *Game) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	g.digestHeader(h, &tmp)
	g.digestPlayers(h, &tmp)
	g.digestBoard(h, &tmp)
	g.digestUnits(h, &tmp)
	g.digestVision(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (g *Game) digestHeader(h hashWriter, tmp *[8]byte) {
	digestWriteU64(h, tmp, uint64(g.turn))
	digestWriteU64(h, tmp, uint64(g.units.NextID()))
	h.Write([]byte{boolByte(g.done)})
	digestWriteI64(h, tmp, int64(g.victor))
}

func (g *Game) digestPlayers(h hashWriter, tmp *[8]byte) {
	for p := 0; p < 2; p++ {
		digestWriteI64(h, tmp, int64(g.players[p].Energy))
		digestWriteI64(h, tmp, int64(g.players[p].Spawn.X))
		digestWriteI64(h, tmp, int64(g.players[p].Spawn.Y))
		digestWriteI64(h, tmp, int64(g.territoryCount[p]))
	}
}

func (g *Game) digestBoard(h hashWriter, tmp *[8]byte) {
	n := g.board.Size()
	digestWriteU64(h, tmp, uint64(n))
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			p := Pos{X: x, Y: y}
			h.Write([]byte{byte(g.board.Kind(p))})
			digestWriteI64(h, tmp, int64(g.board.Payload(p)))
		}
	}
}

func (g *Game) digestUnits(h hashWriter, tmp *[8]byte) {
	ids := g.units.IDs()
	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		u := g.units.Get(id)
		digestWriteU64(h, tmp, uint64(u.ID))
		digestWriteU64(h, tmp, uint64(u.Owner))
		h.Write([]byte{byte(u.Kind), boolByte(u.Boosted)})
		digestWriteI64(h, tmp, int64(u.Pos.X))
		digestWriteI64(h, tmp, int64(u.Pos.Y))
		digestWriteI64(h, tmp, int64(u.Health))
		digestWriteI64(h, tmp, int64(u.AttacksRemaining))
	}
}

func (g *Game) digestVision(h hashWriter, tmp *[8]byte) {
	for p := 0; p < 2; p++ {
		digestWriteU64(h, tmp, uint64(g.vision.Count(p)))
		row := make([]byte, len(g.vision.explored[p]))
		for i, b := range g.vision.explored[p] {
			row[i] = boolByte(b)
		}
		h.Write(row)
	}
}
