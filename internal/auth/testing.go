package auth

import "context"

// SetClientForTest injects an authenticated client into the context for testing purposes.
func SetClientForTest(ctx context.Context, client string, scopes ...string) context.Context {
	return WithClaims(ctx, &Claims{Client: client, Scopes: scopes})
}
