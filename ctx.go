package cloudscribe

import "context"

var siteCtxKey = &contextKey{"site"}
var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithSite sets the resolved site settings in the request context. The
// tenant resolver in the web layer calls this once per request; core
// operations still take the site explicitly and never read ambient state.
func WithSite(ctx context.Context, site *SiteSettings) context.Context {
	return context.WithValue(ctx, siteCtxKey, site)
}

// SiteFromContext finds the site settings in the context.
func SiteFromContext(ctx context.Context) (*SiteSettings, bool) {
	site, ok := ctx.Value(siteCtxKey).(*SiteSettings)
	return site, ok
}

// WithUser sets the signed-in user in the request context.
func WithUser(ctx context.Context, user *SiteUser) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the signed-in user in the context.
func UserFromContext(ctx context.Context) (*SiteUser, bool) {
	user, ok := ctx.Value(userCtxKey).(*SiteUser)
	return user, ok
}
