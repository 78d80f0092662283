package quota

import "fmt"

// Identity is who a request is metered against. It is either Authenticated
// or Anonymous; no other implementations exist outside this package.
type Identity interface {
	// Kind returns "authenticated" or "anonymous".
	Kind() string
	isIdentity()
}

// Authenticated is a caller with a durable server-side user record.
type Authenticated struct {
	UserID int64
}

func (Authenticated) Kind() string { return "authenticated" }
func (Authenticated) isIdentity()  {}

func (a Authenticated) String() string {
	return fmt.Sprintf("user:%d", a.UserID)
}

// Anonymous is a caller known only by a client-held session token.
type Anonymous struct {
	SessionToken string
}

func (Anonymous) Kind() string { return "anonymous" }
func (Anonymous) isIdentity()  {}

func (a Anonymous) String() string {
	return "session:" + a.SessionToken
}

func unknownIdentity(id Identity) string {
	return fmt.Sprintf("quota: unhandled identity %T", id)
}
