package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextOperatorKey ctxKey = "operatorID"

// Operator is the authenticated human driving settlement mutations; its ID
// ends up in the approval/void audit fields.
type Operator struct {
	ID          string
	Name        string
	Permissions []string
}

func (o *Operator) HasPermission(perm string) bool {
	for _, p := range o.Permissions {
		if p == perm || p == "admin" {
			return true
		}
	}
	return false
}

func OperatorFromContext(ctx context.Context) (*Operator, bool) {
	if ctx == nil {
		return nil, false
	}
	op, ok := ctx.Value(ContextOperatorKey).(*Operator)
	return op, ok
}

func ContextWithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, ContextOperatorKey, op)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
