package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
// It is used for watermill message ids and correlation tokens alike.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IssuedAt extracts the creation time of a token minted by CreateULID. Tokens
// from other producers report false.
func IssuedAt(token string) (time.Time, bool) {
	id, err := ulid.ParseStrict(token)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(id.Time()), true
}
