package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "http", "mcp", "bridge"
	RequestIDKey contextKey = "kit_request_id"
	MethodKey    contextKey = "kit_method"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

func WithMethod(ctx context.Context, m string) context.Context {
	return context.WithValue(ctx, MethodKey, m)
}
func GetMethod(ctx context.Context) string {
	v, _ := ctx.Value(MethodKey).(string)
	return v
}
