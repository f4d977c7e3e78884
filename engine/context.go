package engine

import "context"

type (
	// ContextData carries caller supplied values for one execution. Fallback
	// value providers and custom layers read it via [DataFrom].
	ContextData map[string]any

	operationKeyCtx struct{}
	contextDataCtx  struct{}
)

// WithOperationKey returns a context whose executions are cached under key by
// caching layers. Without a key, caching layers pass through.
func WithOperationKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, operationKeyCtx{}, key)
}

// OperationKey returns the key set by [WithOperationKey].
func OperationKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(operationKeyCtx{}).(string)

	return key, ok && key != ""
}

// WithData attaches data to ctx.
func WithData(ctx context.Context, data ContextData) context.Context {
	return context.WithValue(ctx, contextDataCtx{}, data)
}

// DataFrom returns the data attached with [WithData], or nil.
func DataFrom(ctx context.Context) ContextData {
	data, _ := ctx.Value(contextDataCtx{}).(ContextData)

	return data
}
