package reactive

import "context"

// ctxKey namespaces ambient context values ("ambient context
// values readable from reactive functions") under the standard
// context.Context, the same vehicle pkg/ctx.Context.Context exposes to
// handlers.
type ctxKey string

// WithValue attaches an ambient value under name, readable by any entity
// method or computed function that receives ctx.
func WithValue(ctx context.Context, name string, value any) context.Context {
	return context.WithValue(ctx, ctxKey(name), value)
}

// Value reads an ambient value previously attached with WithValue.
func Value(ctx context.Context, name string) (any, bool) {
	v := ctx.Value(ctxKey(name))
	return v, v != nil
}
