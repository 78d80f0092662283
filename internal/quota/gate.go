// Package quota implements the entitlement gate that meters chat and image
// analysis requests.
//
// A request is checked with Meter.Authorize, which only reads. Handlers
// then charge the counter with Meter.RecordUsage before dispatching the
// work to the LLM or the classifier. Charging first is intentional: a
// caller must not be able to dodge the limit by making the downstream call
// fail. Do not move RecordUsage after the dispatch.
//
// Counter write failures never fail the request. They are logged and
// reported in Receipt.Err for callers that care.
package quota

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/metrics"
)

type Outcome int

const (
	Allow Outcome = iota + 1
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

type Reason string

const ReasonLimitExceeded Reason = "limit_exceeded"

// Decision is the result of Authorize. For Allow, Counter is the value to
// persist. For Deny, Counter is the value that was observed.
type Decision struct {
	Identity  Identity
	Operation Operation
	Outcome   Outcome
	Reason    Reason
	Counter   int64
	Limit     int64
}

func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Receipt is the result of RecordUsage. Denied is set when an atomic store
// found the limit already consumed by a concurrent request; the caller must
// answer as if Authorize had denied. Err holds a swallowed write failure.
type Receipt struct {
	Counter int64
	Denied  bool
	Err     error
}

// State is where an identity sits for an operation.
type State int

const (
	Unmetered State = iota + 1
	UnderLimit
	AtLimit
)

func (s State) String() string {
	switch s {
	case Unmetered:
		return "unmetered"
	case UnderLimit:
		return "under_limit"
	case AtLimit:
		return "at_limit"
	default:
		return "unknown"
	}
}

// AnonymousStoreFunc returns the counter store for anonymous callers of
// one request.
type AnonymousStoreFunc func(w http.ResponseWriter, r *http.Request) CounterStore

// CookieStores keeps anonymous counters in the queryCount cookie.
func CookieStores(secure bool) AnonymousStoreFunc {
	return func(w http.ResponseWriter, r *http.Request) CounterStore {
		return NewCookieStore(w, r, secure)
	}
}

// SharedStore uses one server-side store for every request.
func SharedStore(store CounterStore) AnonymousStoreFunc {
	return func(http.ResponseWriter, *http.Request) CounterStore {
		return store
	}
}

type Gate struct {
	policy    Policy
	users     CounterStore
	anonymous AnonymousStoreFunc
	logger    *zap.Logger
}

func NewGate(policy Policy, users CounterStore, anonymous AnonymousStoreFunc, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		policy:    policy,
		users:     users,
		anonymous: anonymous,
		logger:    logger,
	}
}

func (g *Gate) Policy() Policy { return g.policy }

// Bind returns a Meter for one request.
func (g *Gate) Bind(w http.ResponseWriter, r *http.Request) *Meter {
	return &Meter{gate: g, anonymous: g.anonymous(w, r)}
}

// Meter is the gate bound to the counter stores of one request.
type Meter struct {
	gate      *Gate
	anonymous CounterStore
}

func (m *Meter) store(id Identity) CounterStore {
	switch id.(type) {
	case Authenticated:
		return m.gate.users
	case Anonymous:
		return m.anonymous
	default:
		panic(unknownIdentity(id))
	}
}

// load reads the counter, treating any failure as zero.
func (m *Meter) load(ctx context.Context, id Identity) int64 {
	n, err := m.store(id).Load(ctx, id)
	if err != nil {
		m.gate.logger.Warn("Usage counter read failed, assuming zero",
			zap.String("identity", id.Kind()),
			zap.Error(err),
		)
		metrics.GateStoreReadFailures.WithLabelValues(id.Kind()).Inc()
		return 0
	}
	return n
}

// Authorize decides whether id may perform op. It never writes.
func (m *Meter) Authorize(ctx context.Context, id Identity, op Operation) Decision {
	limit := m.gate.policy.Limit(id, op)
	n := m.load(ctx, id)

	d := Decision{
		Identity:  id,
		Operation: op,
		Limit:     limit,
	}

	switch id.(type) {
	case Authenticated:
		d.Outcome = Allow
		d.Counter = n + 1
	case Anonymous:
		if n >= limit {
			d.Outcome = Deny
			d.Reason = ReasonLimitExceeded
			d.Counter = n
		} else {
			d.Outcome = Allow
			d.Counter = n + 1
		}
	default:
		panic(unknownIdentity(id))
	}

	metrics.GateDecisions.WithLabelValues(string(op), id.Kind(), d.Outcome.String()).Inc()
	m.gate.logger.Debug("Entitlement decision",
		zap.String("identity", id.Kind()),
		zap.String("operation", string(op)),
		zap.Stringer("outcome", d.Outcome),
		zap.Int64("counter", d.Counter),
		zap.Int64("limit", limit),
	)
	return d
}

// RecordUsage charges an allowed decision to the identity's counter.
// Denied decisions are not recorded.
func (m *Meter) RecordUsage(ctx context.Context, d Decision) Receipt {
	if !d.Allowed() || d.Identity == nil {
		return Receipt{Counter: d.Counter}
	}

	store := m.store(d.Identity)

	var (
		n   int64
		err error
	)
	if atomic, ok := store.(AtomicCounterStore); ok {
		n, err = atomic.Charge(ctx, d.Identity, d.Limit)
	} else {
		n, err = d.Counter, store.Store(ctx, d.Identity, d.Counter)
	}

	if errors.Is(err, ErrLimitExceeded) {
		metrics.GateDecisions.WithLabelValues(string(d.Operation), d.Identity.Kind(), "deny_on_charge").Inc()
		return Receipt{Counter: n, Denied: true}
	}
	if err != nil {
		m.gate.logger.Error("Usage counter write failed, request proceeds",
			zap.String("identity", d.Identity.Kind()),
			zap.String("operation", string(d.Operation)),
			zap.Int64("counter", d.Counter),
			zap.Error(err),
		)
		metrics.GateRecordFailures.WithLabelValues(d.Identity.Kind()).Inc()
		return Receipt{Counter: d.Counter, Err: err}
	}
	return Receipt{Counter: n}
}

// Count returns the stored counter for id.
func (m *Meter) Count(ctx context.Context, id Identity) (int64, error) {
	return m.store(id).Load(ctx, id)
}

// SetCount overwrites the stored counter for id (last write wins).
func (m *Meter) SetCount(ctx context.Context, id Identity, n int64) error {
	return m.store(id).Store(ctx, id, n)
}

// State reports where id sits for op.
func (m *Meter) State(ctx context.Context, id Identity, op Operation) State {
	switch id.(type) {
	case Authenticated:
		return Unmetered
	case Anonymous:
		if m.load(ctx, id) >= m.gate.policy.Limit(id, op) {
			return AtLimit
		}
		return UnderLimit
	default:
		panic(unknownIdentity(id))
	}
}
