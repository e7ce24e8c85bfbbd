// Package permission is the archive's capability table: which role may do
// what, under which plan flags and in which invoice state. Every decision
// carries a reason; a denial never has side effects.
package permission

import (
	"context"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/models"
)

// Subject is everything a decision needs about the caller. It must be fully
// resolved before calling the gate. The zero Subject is anonymous.
type Subject struct {
	UserID        uint
	Role          models.Role
	Plan          models.PlanFlags
	ClientCount   int
	CreateDispute bool
}

// Gate wires the role table and the policies onto a gate.Gate.
type Gate struct {
	g *gate.Gate[Subject]
}

// New builds the archive gate.
func New() *Gate {
	g := gate.New[Subject](gate.ResolverFunc[Subject, gate.Profile](profileFor))

	g.Register(AddClient, gate.PolicyFunc[Subject](addClient))
	g.Register(ShareDocument, planFlag(func(f models.PlanFlags) bool { return f.CanShareDocument }, "document sharing"))
	g.Register(ViewActivityLogs, planFlag(func(f models.PlanFlags) bool { return f.CanViewActivityLogs }, "activity logs"))
	g.Register(ViewReports, planFlag(func(f models.PlanFlags) bool { return f.CanViewReports }, "reports"))
	g.Register(MultipleUploads, planFlag(func(f models.PlanFlags) bool { return f.AllowMultipleUploads }, "multiple uploads"))
	g.Register(ChatWithDocument, gate.PolicyFunc[Subject](chat))
	g.Register(CreateDispute, gate.PolicyFunc[Subject](createDispute))
	g.Register(VerifyInvoice, gate.PolicyFunc[Subject](verifyInvoice))
	g.Register(SubmitInvoice, gate.PolicyFunc[Subject](submitInvoice))
	g.Register(EditInvoice, gate.PolicyFunc[Subject](editInvoice))

	return &Gate{g: g}
}

// Check decides action for s. resource is the targeted record (an
// *models.Invoice for invoice actions) or nil.
func (pg *Gate) Check(ctx context.Context, action gate.Action, s Subject, resource any) gate.Decision {
	return pg.g.Check(ctx, s, action, resource)
}

// Can is Check reduced to a boolean.
func (pg *Gate) Can(ctx context.Context, action gate.Action, s Subject, resource any) bool {
	return pg.g.Can(ctx, s, action, resource)
}

// Authorize returns a *gate.DeniedError (or gate.ErrUnauthenticated) when denied.
func (pg *Gate) Authorize(ctx context.Context, action gate.Action, s Subject, resource any) error {
	return pg.g.Authorize(ctx, s, action, resource)
}

// CanRole answers the plain role plus plan flags question, without counters,
// user flags or a target record.
func (pg *Gate) CanRole(action gate.Action, role models.Role, flags models.PlanFlags) bool {
	return pg.Can(context.Background(), action, Subject{Role: role, Plan: flags}, nil)
}

// Capabilities decides every known action for s. It is the view model a
// dashboard renders instead of per-role pages.
func (pg *Gate) Capabilities(ctx context.Context, s Subject) map[gate.Action]gate.Decision {
	out := make(map[gate.Action]gate.Decision, len(Actions()))
	for _, a := range Actions() {
		out[a] = pg.Check(ctx, a, s, nil)
	}
	return out
}
