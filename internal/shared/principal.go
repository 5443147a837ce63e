package shared

// Principal is the verified identity of the caller for one request.
// OrganizationID is nil only for platform level accounts.
type Principal struct {
	UserID         int64
	OrganizationID *int64
	DeclaredRole   string
	IsSuperAdmin   bool
}

// Organization returns the principal's own tenant, if any.
func (p Principal) Organization() (int64, bool) {
	if p.OrganizationID == nil {
		return 0, false
	}
	return *p.OrganizationID, true
}

// OrgID is a helper for building optional organization ids.
func OrgID(id int64) *int64 {
	return &id
}
