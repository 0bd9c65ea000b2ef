// Package fingerprint canonicalizes observation tensors into SHA-256
// digests used as determinism fingerprints. The digest covers both the
// declared shape and the raw element bytes: identical bytes under different
// shapes must never conflate.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

// Sum returns the hex-encoded canonical digest of an observation.
//
// Encoding: 8-byte big-endian dimension count, each dimension as 8-byte
// big-endian, then the raw row-major bytes.
func Sum(obs sim.Observation) string {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(obs.Shape)))
	h.Write(buf[:])
	for _, dim := range obs.Shape {
		binary.BigEndian.PutUint64(buf[:], uint64(dim))
		h.Write(buf[:])
	}
	h.Write(obs.Data)

	return hex.EncodeToString(h.Sum(nil))
}
