package logger

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	originKey
)

// Origins name the surface that triggered a task action.
const (
	OriginHTTP   = "http"
	OriginMCP    = "mcp"
	OriginCLI    = "cli"
	OriginTicker = "ticker"
)

// WithRequestID returns a context carrying the HTTP request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithOrigin tags ctx with the surface an action came from.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

// Origin returns the origin carried by ctx, or "".
func Origin(ctx context.Context) string {
	o, _ := ctx.Value(originKey).(string)
	return o
}
