// Package integrity computes the tamper-detection digest over a record's
// protected content and stable metadata. The digest is independent of the
// encryption layer: it detects out-of-band mutation of envelopes or metadata
// even when each envelope still authenticates on its own.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"custodia/internal/crypto/fieldcipher"
)

// Digest is a hex-encoded SHA-256 over the canonicalized record content.
type Digest string

// Compute produces a deterministic digest over the protected envelopes, the
// stable metadata, and the owner identity. Map keys are sorted and every
// segment is length-prefixed, so iteration order and value boundaries cannot
// change the result.
func Compute(protected map[string]fieldcipher.Envelope, metadata map[string]string, owner string) Digest {
	h := sha256.New()

	writeSegment(h, []byte(owner))

	fields := make([]string, 0, len(protected))
	for name := range protected {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		env := protected[name]
		writeSegment(h, []byte(name))
		writeSegment(h, env.Nonce)
		writeSegment(h, env.Ciphertext)
		writeSegment(h, env.Tag)
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeSegment(h, []byte(k))
		writeSegment(h, []byte(metadata[k]))
	}

	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// Verify reports whether the stored digest matches the recomputed one.
// A mismatch is a hard-fail signal: the record is considered tampered and
// callers must deny access. Comparison is constant-time.
func Verify(stored, recomputed Digest) bool {
	if len(stored) != len(recomputed) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(recomputed)) == 1
}

// writeSegment writes a length-prefixed segment so adjacent values cannot be
// reinterpreted across boundaries.
func writeSegment(h hash.Hash, b []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(b)))
	h.Write(length[:])
	h.Write(b)
}
