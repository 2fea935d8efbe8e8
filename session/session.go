// Package session threads per-session state through context.Context.
//
// The one piece of state today is the last entered list-view expression.
// Keeping it on the context instead of a package-level variable means two
// concurrent sessions never observe each other's input.
package session

import "context"

type contextKey string

const expressionKey contextKey = "session_expression"

// WithExpression records text as the session's last entered list-view
// expression.
func WithExpression(ctx context.Context, text string) context.Context {
	return context.WithValue(ctx, expressionKey, text)
}

// Expression returns the session's last entered expression, if one was
// recorded.
func Expression(ctx context.Context) (string, bool) {
	text, ok := ctx.Value(expressionKey).(string)
	return text, ok
}
