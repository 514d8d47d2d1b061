package auth

import "context"

type clientIPKey struct{}

// WithClientIP はログイン試行回数の集計に使う接続元IPを ctx に設定します。
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext は ctx に設定された接続元IPを返します。
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
