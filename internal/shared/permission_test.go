package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPermission(t *testing.T) {
	cases := []struct {
		name   string
		module string
		action string
		ok     bool
	}{
		{name: "voucher.read", module: "voucher", action: "read", ok: true},
		{name: "voucher_read", module: "voucher", action: "read", ok: true},
		{name: " Inventory.Create ", module: "inventory", action: "create", ok: true},
		{name: "inventory.stock.read", module: "inventory.stock", action: "read", ok: true},
		{name: "sales_order.update", module: "sales_order", action: "update", ok: true},
		{name: "voucher", ok: false},
		{name: ".read", ok: false},
		{name: "voucher.", ok: false},
		{name: "", ok: false},
	}
	for _, tc := range cases {
		module, action, ok := SplitPermission(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		if tc.ok {
			assert.Equal(t, tc.module, module, tc.name)
			assert.Equal(t, tc.action, action, tc.name)
		}
	}
}

func TestCanonicalPermissionTreatsSeparatorsEquivalently(t *testing.T) {
	assert.Equal(t, "voucher.create", CanonicalPermission("voucher_create"))
	assert.Equal(t, "voucher.create", CanonicalPermission("VOUCHER.CREATE"))
	assert.Equal(t, CanonicalPermission("hr_read"), CanonicalPermission("hr.read"))
	assert.Equal(t, "garbage", CanonicalPermission(" Garbage "))
}

func TestPermissionName(t *testing.T) {
	assert.Equal(t, "voucher.delete", PermissionName("Voucher", "DELETE"))
}

func TestCatalogueScopesCoversEveryModuleAction(t *testing.T) {
	scopes := CatalogueScopes()
	assert.Len(t, scopes, len(Modules())*len(Actions()))
	assert.Contains(t, scopes, "inventory.manage")
	assert.Contains(t, scopes, "admin.read")
}
