// Package ids generates identifiers: UUIDs for entities and tokens, ULIDs for
// append-only audit records where lexicographic order matters.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a random UUIDv4 string. Used for entity ids and token jtis.
func New() string {
	return uuid.New().String()
}

// NewSortable returns a lexicographically sortable ULID. Used for audit log
// ids so insertion order survives in the primary key.
func NewSortable() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
