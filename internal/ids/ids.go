package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier. Within one process
// identifiers are strictly monotonic, so string comparison on ids agrees
// with creation order; the notification delta cursor relies on this.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IsValid reports whether s parses as a generated identifier.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
