package domain

// Principal identifies a user in string form. The wire format wraps it
// in an object; the client stores the bare string everywhere else.
type Principal string

// Anonymous is the principal of a signed-out session.
const Anonymous Principal = ""

// IsAnonymous reports whether no user is signed in.
func (p Principal) IsAnonymous() bool { return p == Anonymous }

func (p Principal) String() string { return string(p) }
