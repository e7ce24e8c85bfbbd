package permission

import (
	"context"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/models"
)

func planFlag(enabled func(models.PlanFlags) bool, feature string) gate.Policy[Subject] {
	return gate.PolicyFunc[Subject](func(_ context.Context, s Subject, _ gate.Action, _ any) gate.Decision {
		if !enabled(s.Plan) {
			return gate.Deny("your plan does not include %s", feature)
		}
		return gate.Allow()
	})
}

func addClient(_ context.Context, s Subject, _ gate.Action, _ any) gate.Decision {
	if s.Role != models.RoleOwner {
		return gate.Deny("only owners can add clients")
	}
	if !s.Plan.CanAddClient {
		return gate.Deny("your plan does not allow adding clients")
	}
	if s.ClientCount >= s.Plan.NumberOfClients {
		return gate.Deny("client limit of %d reached", s.Plan.NumberOfClients)
	}
	return gate.Allow()
}

func chat(_ context.Context, s Subject, _ gate.Action, _ any) gate.Decision {
	if s.Role == models.RoleOwner || s.Plan.CanViewChat {
		return gate.Allow()
	}
	return gate.Deny("your plan does not include chatting with documents")
}

func createDispute(_ context.Context, s Subject, _ gate.Action, _ any) gate.Decision {
	if s.CreateDispute || s.Role.CreateDisputeLocked() {
		return gate.Allow()
	}
	return gate.Deny("you are not allowed to raise disputes")
}

// Invoice policies check state only when a record is given; without one the
// role grant alone answers, which is what list views need.

func verifyInvoice(_ context.Context, s Subject, _ gate.Action, resource any) gate.Decision {
	inv, ok := resource.(*models.Invoice)
	if !ok || inv == nil {
		return gate.Allow()
	}
	// The company submits its own bill; someone outside it verifies.
	if inv.Kind == models.InvoiceKindCompany && s.Role != models.RoleAdmin {
		return gate.Deny("company invoices are verified by platform staff")
	}
	if !inv.InvoiceSubmitted {
		return gate.Deny("invoice has not been submitted yet")
	}
	if inv.InvoiceSubmittedAdmin {
		return gate.Deny("invoice is already verified")
	}
	return gate.Allow()
}

func submitInvoice(_ context.Context, _ Subject, _ gate.Action, resource any) gate.Decision {
	inv, ok := resource.(*models.Invoice)
	if !ok || inv == nil {
		return gate.Allow()
	}
	if inv.InvoiceSubmitted {
		return gate.Deny("invoice is already submitted")
	}
	return gate.Allow()
}

func editInvoice(_ context.Context, _ Subject, _ gate.Action, resource any) gate.Decision {
	inv, ok := resource.(*models.Invoice)
	if !ok || inv == nil {
		return gate.Allow()
	}
	if !inv.CanEdit() {
		return gate.Deny("invoice is verified and can no longer change")
	}
	return gate.Allow()
}
