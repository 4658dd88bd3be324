package session

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Digest is a sha256 over dimensions, cells (x-major), points, rate, and the accrual clock.
func (s *Session) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, uint64(s.grid.Width()))
	digestWriteU64(h, &tmp, uint64(s.grid.Height()))
	for x := 0; x < s.grid.Width(); x++ {
		for y := 0; y < s.grid.Height(); y++ {
			h.Write([]byte{byte(s.grid.CellAt(x, y))})
		}
	}
	digestWriteI64(h, &tmp, s.econ.Points())
	digestWriteI64(h, &tmp, s.econ.PointsPerTick())
	digestWriteI64(h, &tmp, s.clock)

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}
