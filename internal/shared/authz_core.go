package shared

// Business modules recognised by the enforcement layer.
const (
	ModuleVoucher       = "voucher"
	ModuleManufacturing = "manufacturing"
	ModuleFinance       = "finance"
	ModuleCRM           = "crm"
	ModuleHR            = "hr"
	ModuleInventory     = "inventory"
	ModuleMaster        = "master"
	ModuleIntegration   = "integration"
	ModuleService       = "service"
	ModuleNotification  = "notification"
	ModuleOrder         = "order"
	ModuleAdmin         = "admin"
)

// Server side actions. Read/create/update/delete form the base CRUD set,
// list/access/manage are seeded synonyms.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionList   = "list"
	ActionAccess = "access"
	ActionManage = "manage"
)

// Modules lists every business module.
func Modules() []string {
	return []string{
		ModuleVoucher,
		ModuleManufacturing,
		ModuleFinance,
		ModuleCRM,
		ModuleHR,
		ModuleInventory,
		ModuleMaster,
		ModuleIntegration,
		ModuleService,
		ModuleNotification,
		ModuleOrder,
		ModuleAdmin,
	}
}

// CRUDActions lists the base action set.
func CRUDActions() []string {
	return []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
}

// Actions lists every server side action.
func Actions() []string {
	return append(CRUDActions(), ActionList, ActionAccess, ActionManage)
}

// CatalogueScopes lists every canonical permission of the platform.
func CatalogueScopes() []string {
	modules := Modules()
	actions := Actions()
	scopes := make([]string, 0, len(modules)*len(actions))
	for _, module := range modules {
		for _, action := range actions {
			scopes = append(scopes, PermissionName(module, action))
		}
	}
	return scopes
}
