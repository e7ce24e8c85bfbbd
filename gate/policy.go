package gate

import "context"

// Policy decides a single action once the subject's profile grants it.
// Policies see the subject and the optional resource (an invoice, a document).
type Policy[S any] interface {
	Decide(ctx context.Context, subject S, action Action, resource any) Decision
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc[S any] func(ctx context.Context, subject S, action Action, resource any) Decision

func (f PolicyFunc[S]) Decide(ctx context.Context, subject S, action Action, resource any) Decision {
	return f(ctx, subject, action, resource)
}
