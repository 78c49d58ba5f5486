package goJWT

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Audit events
// emitted under ctx carry it as the "client_ip" metadata entry.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Audit events
// emitted under ctx carry it as "user_agent".
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// withRequestMetadata adds the request attributes found in ctx to md,
// allocating md when needed.
func withRequestMetadata(ctx context.Context, md map[string]string) map[string]string {
	ip, ua := clientIPFromContext(ctx), userAgentFromContext(ctx)
	if ip == "" && ua == "" {
		return md
	}
	if md == nil {
		md = make(map[string]string, 2)
	}
	if ip != "" {
		md["client_ip"] = ip
	}
	if ua != "" {
		md["user_agent"] = ua
	}
	return md
}
