package compile

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// hasher wraps blake3.Hasher so Fingerprint can accumulate writes without
// exposing the third-party type across the package boundary.
type hasher struct {
	h *blake3.Hasher
}

func newHasher() *hasher {
	return &hasher{h: blake3.New()}
}

func (h *hasher) Write(p []byte) {
	h.h.Write(p)
}

func (h *hasher) SumHex() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// HashString returns the hex BLAKE3 digest of s. Used wherever a stable
// cache key needs deriving from raw content outside of a bundle, e.g. the
// engine package's single-template process cache.
func HashString(s string) string {
	h := newHasher()
	h.Write([]byte(s))
	return h.SumHex()
}
