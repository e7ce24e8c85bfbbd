package permission

import (
	"context"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/models"
)

// Grants every role carries. Plan flags and per-user flags still apply
// through the policies.
var common = []gate.Action{
	ViewDocuments, ShareDocument, ChatWithDocument, MultipleUploads,
	ViewActivityLogs, ViewReports, CreateDispute, ViewDisputes,
}

func with(extra ...gate.Action) gate.PermissionSet {
	set := make(gate.PermissionSet, 0, len(common)+len(extra))
	for _, a := range append(append([]gate.Action{}, common...), extra...) {
		set = append(set, gate.Permission(a))
	}
	return set
}

// roleGrants is the capability table. Owners hold every grant; the policies
// decide the plan and state dependent parts.
var roleGrants = map[models.Role]gate.PermissionSet{
	models.RoleOwner: {gate.PermissionAll},
	models.RoleAdmin: with(ManagePlans, ManageCompanies, ManageUsers, ViewInvoices,
		VerifyInvoice, GenerateInvoice, EditInvoice, AuditDocuments),
	models.RoleManager: with(ResolveDispute, RouteDocument, PublishDocument),
	models.RoleScanner: with(UploadDocument, RouteDocument),
	models.RoleIndexer: with(IndexDocument, RouteDocument),
	models.RoleQA:      with(ReviewDocument),
	models.RoleClient:  with(UploadDocument, ViewInvoices),
}

// Grants returns the grant set of a role, empty for unknown roles.
func Grants(r models.Role) gate.PermissionSet {
	return roleGrants[r]
}

func profileFor(_ context.Context, s Subject) (gate.Profile, error) {
	grants, ok := roleGrants[s.Role]
	if !ok {
		return nil, nil
	}
	return gate.NewStaticProfile(string(s.Role), grants...), nil
}
