// Package uuid provides UUID v7 generation.
// UUID v7 is sortable by timestamp, which keeps conversation and turn ids
// in insertion order when used as SQLite primary keys.
package uuid

import (
	crand "crypto/rand"
	"fmt"
	"sync"
	"time"
)

// UUID represents a UUID v7 identifier.
type UUID [16]byte

// maxSeq is the largest value of the 12-bit intra-millisecond counter.
const maxSeq = 0x0fff

var (
	mu        sync.Mutex
	lastMilli int64
	seq       uint16
)

// NewV7 generates a new UUID v7 (RFC 9562): 48 bits of millisecond UNIX
// timestamp, a 12-bit monotonic counter in rand_a, then randomness from
// crypto/rand. The counter makes ids minted within the same millisecond
// sort in generation order; when it overflows the timestamp is borrowed
// from the next millisecond.
func NewV7() UUID {
	var u UUID

	// Random tail — bytes 8-15, variant bits overwritten below.
	// crypto/rand.Read never fails on supported platforms; on the impossible
	// failure path the zero bytes still yield a structurally valid id.
	_, _ = crand.Read(u[8:])

	mu.Lock()
	now := time.Now().UnixMilli()
	if now <= lastMilli {
		now = lastMilli
		seq++
		if seq > maxSeq {
			now++
			seq = 0
		}
	} else {
		seq = 0
	}
	lastMilli = now
	counter := seq
	mu.Unlock()

	// Timestamp (48 bits, ms precision) — bytes 0-5
	u[0] = byte(now >> 40)
	u[1] = byte(now >> 32)
	u[2] = byte(now >> 24)
	u[3] = byte(now >> 16)
	u[4] = byte(now >> 8)
	u[5] = byte(now)

	u[6] = 0x70 | byte(counter>>8) // version 0111 + counter high nibble
	u[7] = byte(counter)
	u[8] = 0x80 | (u[8] & 0x3f) // RFC 4122 variant 10xxxxxx

	return u
}

// String returns the UUID in standard form: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		u[0:4],
		u[4:6],
		u[6:8],
		u[8:10],
		u[10:16],
	)
}
