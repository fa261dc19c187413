package shared

import (
	"context"

	"github.com/retrouvio/retrouvio/internal/perm"
)

// ContextWithIdentity stores the authenticated identity in context.
func ContextWithIdentity(ctx context.Context, id perm.Identity) context.Context {
	return perm.ContextWithIdentity(ctx, id)
}

// IdentityFromContext extracts the authenticated identity from context. The
// boolean reports whether an identity was present.
func IdentityFromContext(ctx context.Context) (perm.Identity, bool) {
	return perm.IdentityFromContext(ctx)
}
