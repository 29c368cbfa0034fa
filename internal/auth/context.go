package auth

import "context"

type claimsContextKey struct{}

type capabilitiesContextKey struct{}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}

// WithCapabilities는 요청 시점에 읽은 권한 목록을 저장합니다
func WithCapabilities(ctx context.Context, capabilities []string) context.Context {
	return context.WithValue(ctx, capabilitiesContextKey{}, capabilities)
}

func CapabilitiesFromContext(ctx context.Context) []string {
	capabilities, _ := ctx.Value(capabilitiesContextKey{}).([]string)
	return capabilities
}
