package envelope

import (
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
)

// Hasher accumulates a streaming SHA-512 digest. Large artifacts are hashed
// while they are written or read, so the writer-side and reader-side digests
// of the same byte stream must agree.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns an empty SHA-512 hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha512.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Hex returns the hex encoded digest of everything written so far.
func (h *Hasher) Hex() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Tee returns a reader that feeds every byte read from r into the hasher.
func (h *Hasher) Tee(r io.Reader) io.Reader {
	return io.TeeReader(r, h.h)
}

// Mirror returns a writer that feeds every byte written to w into the
// hasher as well.
func (h *Hasher) Mirror(w io.Writer) io.Writer {
	return io.MultiWriter(w, h.h)
}

// Hash is the one-shot SHA-512 hex fingerprint of b.
func Hash(b []byte) string {
	sum := sha512.Sum512(b)
	return hex.EncodeToString(sum[:])
}
