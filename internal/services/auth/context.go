package auth

import "context"

type identityKey struct{}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID int64
	SID    string
	Role   string
}

func (i Identity) Valid() bool {
	return i.UserID > 0
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext reports false when no identity was attached or the
// attached one has no user.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || !identity.Valid() {
		return Identity{}, false
	}
	return identity, true
}
