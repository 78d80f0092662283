package quota

// Operation is a metered action.
type Operation string

const (
	OpChat          Operation = "chat"
	OpImageAnalysis Operation = "image-analysis"
)

// Unlimited marks a limit that is never enforced.
const Unlimited int64 = -1

// Policy maps each operation to the number of queries an anonymous caller
// may make before being denied. The counter behind it is shared across
// operations; only the threshold differs.
type Policy struct {
	anonymous map[Operation]int64
}

// DefaultPolicy allows anonymous callers five chat turns and three image
// analyses, counted against the same counter.
func DefaultPolicy() Policy {
	return NewPolicy(map[Operation]int64{
		OpChat:          5,
		OpImageAnalysis: 3,
	})
}

func NewPolicy(anonymous map[Operation]int64) Policy {
	limits := make(map[Operation]int64, len(anonymous))
	for op, limit := range anonymous {
		if limit < 0 {
			limit = 0
		}
		limits[op] = limit
	}
	return Policy{anonymous: limits}
}

// Limit returns the threshold for id performing op. Authenticated callers
// are Unlimited. An operation missing from the table has limit zero for
// anonymous callers, so it is denied rather than left open.
func (p Policy) Limit(id Identity, op Operation) int64 {
	switch id.(type) {
	case Authenticated:
		return Unlimited
	case Anonymous:
		return p.anonymous[op]
	default:
		panic(unknownIdentity(id))
	}
}
