package gateway

import "context"

type ctxKey string

const clientIDKey ctxKey = "clientID"

func withClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// actorFromContext names who made the request, for approval audit
func actorFromContext(ctx context.Context) string {
	if ctx == nil {
		return "http"
	}
	if value, ok := ctx.Value(clientIDKey).(string); ok && value != "" {
		return value
	}
	return "http"
}
