package idgen

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 || len(strings.Split(id, "-")) != 5 {
		t.Fatalf("UUIDv7: malformed %q", id)
	}
}

func TestMillis_FrozenClockNeverRepeats(t *testing.T) {
	frozen := time.UnixMilli(1_700_000_000_000)
	gen := MillisFrom(func() time.Time { return frozen })

	seen := make(map[string]struct{})
	prev := int64(0)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, dup := seen[id]; dup {
			t.Fatalf("Millis: duplicate %q at %d", id, i)
		}
		seen[id] = struct{}{}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			t.Fatal(err)
		}
		if n <= prev {
			t.Fatalf("Millis: %d not after %d", n, prev)
		}
		prev = n
	}
	if first := gen(); !strings.HasPrefix(first, "17000000001") {
		t.Fatalf("Millis: got %q, want close to the clock", first)
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("r_", func() string { return "42" })
	if got := gen(); got != "r_42" {
		t.Fatalf("Prefixed: got %q", got)
	}
}
