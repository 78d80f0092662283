package quota

import "context"

// UserCounters is the durable counter column on the user record.
type UserCounters interface {
	QueryCount(ctx context.Context, userID int64) (int64, error)
	SetQueryCount(ctx context.Context, userID int64, n int64) error
	// ChargeQueryCount atomically adds one unless the counter is at limit
	// (Unlimited disables the check). ok is false when the limit held.
	ChargeQueryCount(ctx context.Context, userID int64, limit int64) (n int64, ok bool, err error)
}

// UserStore adapts the user record counter to CounterStore.
type UserStore struct {
	users UserCounters
}

func NewUserStore(users UserCounters) *UserStore {
	return &UserStore{users: users}
}

func (s *UserStore) userID(id Identity) (int64, error) {
	user, ok := id.(Authenticated)
	if !ok {
		return 0, ErrUnsupportedIdentity
	}
	return user.UserID, nil
}

func (s *UserStore) Load(ctx context.Context, id Identity) (int64, error) {
	userID, err := s.userID(id)
	if err != nil {
		return 0, err
	}
	return s.users.QueryCount(ctx, userID)
}

func (s *UserStore) Store(ctx context.Context, id Identity, n int64) error {
	userID, err := s.userID(id)
	if err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	return s.users.SetQueryCount(ctx, userID, n)
}

func (s *UserStore) Charge(ctx context.Context, id Identity, limit int64) (int64, error) {
	userID, err := s.userID(id)
	if err != nil {
		return 0, err
	}
	n, ok, err := s.users.ChargeQueryCount(ctx, userID, limit)
	if err != nil {
		return 0, err
	}
	if !ok {
		return n, ErrLimitExceeded
	}
	return n, nil
}
