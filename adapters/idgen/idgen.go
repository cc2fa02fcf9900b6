// Package idgen issues opaque identifiers. Its only production use is the
// admin session token returned by login and carried in the session cookie
// or the Bearer header. Database rows get their IDs from the store.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/ImagingSolutions/UsageMonitor/ports"
	"github.com/google/uuid"
)

// UUID issues random v4 UUIDs, used as admin session tokens.
type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}

var _ ports.IDGenerator = UUID{}

// Sequential issues prefix1, prefix2, ... so session tests can predict
// the token a login returns.
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

var _ ports.IDGenerator = (*Sequential)(nil)
