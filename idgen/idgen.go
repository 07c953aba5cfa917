// Package idgen provides the identifier strategies used across domreview:
// millisecond ids for reviews and replies, and UUIDv7 for bridge request
// ids.
package idgen

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// MillisFrom returns a Generator that produces now() in Unix
// milliseconds, bumped forward when needed so that it never repeats a
// value it has already returned.
func MillisFrom(now func() time.Time) Generator {
	var (
		mu   sync.Mutex
		last int64
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		ms := now().UnixMilli()
		if ms <= last {
			ms = last + 1
		}
		last = ms
		return strconv.FormatInt(ms, 10)
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}
