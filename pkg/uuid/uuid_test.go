package uuid

import (
	"regexp"
	"sort"
	"testing"
)

func TestNewV7_SetsVersionAndVariant(t *testing.T) {
	t.Parallel()

	u := NewV7()

	// Version nibble in byte 6 must be 0b0111 (v7)
	if (u[6]>>4)&0x0f != 0x07 {
		t.Fatalf("expected version 7 nibble, got %x", (u[6]>>4)&0x0f)
	}

	// Variant in byte 8 must be RFC4122 (10xxxxxx)
	if (u[8] & 0xc0) != 0x80 {
		t.Fatalf("expected RFC4122 variant bits 10xxxxxx, got %08b", u[8])
	}
}

func TestNewV7_MonotonicWithinMillisecond(t *testing.T) {
	t.Parallel()

	// A tight loop mints many ids inside the same millisecond; the
	// intra-ms counter must keep them strictly increasing so primary-key
	// order matches generation order.
	const n = 5000
	ids := make([]string, n)
	for i := range ids {
		ids[i] = NewV7().String()
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatal("expected ids to sort in generation order")
	}
	for i := 1; i < n; i++ {
		if ids[i] == ids[i-1] {
			t.Fatalf("duplicate id at %d: %s", i, ids[i])
		}
	}
}

func TestUUID_String_Format(t *testing.T) {
	t.Parallel()

	u := NewV7()
	s := u.String()

	if len(s) != 36 {
		t.Fatalf("expected UUID string len=36, got %d (%q)", len(s), s)
	}

	re := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	if !re.MatchString(s) {
		t.Fatalf("expected canonical uuid format, got %q", s)
	}
}
