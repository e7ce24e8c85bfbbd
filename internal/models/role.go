package models

// Role identifies what a user does in the archive. Capabilities per role live
// in the permission package; this file only knows the names and the dispute
// flag defaults.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleScanner Role = "scanner"
	RoleIndexer Role = "indexer"
	RoleQA      Role = "qa"
	RoleClient  Role = "client"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleOwner, RoleManager, RoleScanner, RoleIndexer, RoleQA, RoleClient}
}

// RoleNames is Roles as strings, for validation.OneOf.
func RoleNames() []string {
	roles := Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// DefaultCreateDispute is the createDispute flag a new user of this role gets.
func (r Role) DefaultCreateDispute() bool {
	return r == RoleManager || r == RoleQA
}

// CreateDisputeLocked reports whether the flag is fixed for the role.
func (r Role) CreateDisputeLocked() bool {
	return r == RoleManager
}

// Tenant ties a record to the company and, for client-side records, the client
// it belongs to. Platform records leave both nil.
type Tenant struct {
	CompanyID *uint `gorm:"index" json:"company_id,omitempty"`
	ClientID  *uint `gorm:"index" json:"client_id,omitempty"`
}

// SameCompany reports whether both tenants reference the same company.
func (t Tenant) SameCompany(other Tenant) bool {
	return t.CompanyID != nil && other.CompanyID != nil && *t.CompanyID == *other.CompanyID
}

// SameClient reports whether both tenants reference the same client.
func (t Tenant) SameClient(other Tenant) bool {
	return t.ClientID != nil && other.ClientID != nil && *t.ClientID == *other.ClientID
}
