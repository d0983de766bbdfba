package core

import "context"

type contextKey string

const ctxKeyClient contextKey = "client_info"

// ClientInfo identifies who issued a request. It is copied into audit entries.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo attaches caller details to ctx.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ctxKeyClient, info)
}

// ClientInfoFromContext returns the caller details stored by WithClientInfo,
// or the zero value.
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	if v, ok := ctx.Value(ctxKeyClient).(ClientInfo); ok {
		return v
	}
	return ClientInfo{}
}
