package quota

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// CounterTTL is how long an anonymous counter survives without a write.
const CounterTTL = 7 * 24 * time.Hour

var (
	// ErrLimitExceeded is returned by an AtomicCounterStore when the counter
	// already reached the limit at the moment of charging.
	ErrLimitExceeded = errors.New("quota: query limit exceeded")
	// ErrUnsupportedIdentity is returned by a store asked about an identity
	// variant it does not hold counters for.
	ErrUnsupportedIdentity = errors.New("quota: identity not supported by store")
)

// CounterStore persists usage counters for one kind of identity.
// Store is last-write-wins.
type CounterStore interface {
	Load(ctx context.Context, id Identity) (int64, error)
	Store(ctx context.Context, id Identity, n int64) error
}

// AtomicCounterStore can increment a counter without a read-modify-write
// race. Charge adds one unless the counter is already at limit (Unlimited
// disables the check) and returns the new value.
type AtomicCounterStore interface {
	CounterStore
	Charge(ctx context.Context, id Identity, limit int64) (int64, error)
}

// ParseCounter reads a stored counter. Anything that is not a non-negative
// base-10 integer counts as zero. Values past int64 saturate at
// math.MaxInt64 so they stay over any limit.
func ParseCounter(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return n
	}
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formatCounter(n int64) string {
	return strconv.FormatInt(n, 10)
}
