package permission

import "github.com/diewo77/go-archive/gate"

// Plan and role gated actions.
const (
	AddClient        gate.Action = "client:add"
	ShareDocument    gate.Action = "document:share"
	ViewActivityLogs gate.Action = "activity:view"
	ViewReports      gate.Action = "report:view"
	ChatWithDocument gate.Action = "document:chat"
	MultipleUploads  gate.Action = "document:upload_many"
	ResolveDispute   gate.Action = "dispute:resolve"
	CreateDispute    gate.Action = "dispute:create"
	VerifyInvoice    gate.Action = "invoice:verify"
	SubmitInvoice    gate.Action = "invoice:submit"
)

// Role-only actions used by the pipeline and the back office.
const (
	ViewDocuments     gate.Action = "document:view"
	UploadDocument    gate.Action = "document:upload"
	RouteDocument     gate.Action = "document:route"
	IndexDocument     gate.Action = "document:index"
	ReviewDocument    gate.Action = "document:qa"
	PublishDocument   gate.Action = "document:publish"
	AuditDocuments    gate.Action = "document:audit"
	ViewDisputes      gate.Action = "dispute:view"
	ManagePlans       gate.Action = "plan:manage"
	ManageClientPlans gate.Action = "client_plan:manage"
	ManageCompanies   gate.Action = "company:manage"
	ManageClients     gate.Action = "client:manage"
	ManageUsers       gate.Action = "user:manage"
	ViewInvoices      gate.Action = "invoice:view"
	GenerateInvoice   gate.Action = "invoice:generate"
	EditInvoice       gate.Action = "invoice:edit"
)

// Actions lists every action the gate knows, in a stable order.
func Actions() []gate.Action {
	return []gate.Action{
		AddClient, ShareDocument, ViewActivityLogs, ViewReports, ChatWithDocument,
		MultipleUploads, ResolveDispute, CreateDispute, VerifyInvoice, SubmitInvoice,
		ViewDocuments, UploadDocument, RouteDocument, IndexDocument, ReviewDocument,
		PublishDocument, AuditDocuments, ViewDisputes, ManagePlans, ManageClientPlans, ManageCompanies,
		ManageClients, ManageUsers, ViewInvoices, GenerateInvoice, EditInvoice,
	}
}

// Known reports whether a is one of Actions.
func Known(a gate.Action) bool {
	for _, k := range Actions() {
		if k == a {
			return true
		}
	}
	return false
}

var explanations = map[gate.Action]string{
	AddClient:         "Only company owners whose plan allows clients can add clients, up to the plan's client limit.",
	ShareDocument:     "Your plan does not include document sharing.",
	ViewActivityLogs:  "Your plan does not include activity logs.",
	ViewReports:       "Your plan does not include reports.",
	ChatWithDocument:  "Your plan does not include chatting with documents.",
	MultipleUploads:   "Your plan allows one upload at a time.",
	ResolveDispute:    "Only managers and owners can resolve disputes.",
	CreateDispute:     "You are not allowed to raise disputes. Ask an owner to enable it for your account.",
	VerifyInvoice:     "Only admins and owners can verify an invoice, once it has been submitted and before it is verified.",
	SubmitInvoice:     "Only owners can submit an invoice, and only once.",
	ViewDocuments:     "You cannot view documents.",
	UploadDocument:    "Your role cannot upload documents.",
	RouteDocument:     "Your role cannot pass documents to another stage.",
	IndexDocument:     "Only indexers and owners can mark a document as indexed.",
	ReviewDocument:    "Only QA reviewers and owners can pass a document through QA.",
	PublishDocument:   "Only managers and owners can publish documents.",
	AuditDocuments:    "Only admins and owners can audit document progress.",
	ViewDisputes:      "You cannot view disputes.",
	ManagePlans:       "Only admins and owners can manage plans.",
	ManageClientPlans: "Only owners can manage client plans.",
	ManageCompanies:   "Only admins and owners can manage companies.",
	ManageClients:     "Only owners can manage clients.",
	ManageUsers:       "Only admins and owners can manage users.",
	ViewInvoices:      "Your role cannot view invoices.",
	GenerateInvoice:   "Only admins and owners can generate invoices.",
	EditInvoice:       "Only admins and owners can edit an invoice, and only before it is verified.",
}

// Explain returns the message shown when action is denied.
func Explain(a gate.Action) string {
	if msg, ok := explanations[a]; ok {
		return msg
	}
	return "This action is not available."
}
