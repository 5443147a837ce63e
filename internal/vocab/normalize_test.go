package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddsClientAliases(t *testing.T) {
	got := Normalize([]string{"inventory.read"})
	assert.Equal(t, []string{"inventory.read", "inventory.view"}, got)

	got = Normalize([]string{"Finance_Update", "crm.manage", "hr.create", "hr.delete"})
	assert.Equal(t, []string{
		"crm.manage", "crm.view",
		"finance.edit", "finance.update",
		"hr.create", "hr.delete",
	}, got)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := [][]string{
		nil,
		{"inventory.read"},
		{"voucher.list", "voucher.access", "VOUCHER.Update", "order_delete"},
		{"garbage", "  ", "inventory.stock.read"},
	}
	for _, raw := range inputs {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(once), "%v", raw)
	}
}

func TestViewModuleAccess(t *testing.T) {
	v := NewView([]string{"inventory.read"})

	assert.True(t, v.HasModuleAccess("inventory"))
	assert.True(t, v.HasModuleAccess("Inventory"))
	assert.False(t, v.HasModuleAccess("finance"))
	assert.False(t, v.HasModuleAccess("inv"))
	assert.True(t, v.HasPermission("inventory.view"))
	assert.True(t, v.HasPermission("inventory_read"))
	assert.False(t, v.HasPermission("inventory.create"))
	assert.Equal(t, []string{"inventory"}, v.Modules())
}

func TestLicensingGatesModuleAccess(t *testing.T) {
	raw := []string{"inventory.read", "finance.read", "finance.ledger.read"}

	v := NewView(raw, WithEnabledModules([]string{" Inventory "}))
	assert.True(t, v.HasModuleAccess("inventory"))
	assert.False(t, v.HasModuleAccess("finance"))
	assert.False(t, v.HasSubmoduleAccess("finance", "ledger"))
	assert.True(t, v.HasPermission("finance.read"))

	v = NewView(raw, WithEnabledModules([]string{"inventory", "finance"}))
	assert.True(t, v.HasSubmoduleAccess("finance", "ledger"))
	assert.False(t, v.HasSubmoduleAccess("finance", "payables"))

	v = NewView(raw, WithEnabledModules(nil))
	assert.False(t, v.HasModuleAccess("inventory"))
}

func TestSubmoduleAccessUnderscoreForm(t *testing.T) {
	v := NewView([]string{"inventory_stock.read"})
	assert.True(t, v.HasSubmoduleAccess("inventory", "stock"))
	assert.False(t, v.HasSubmoduleAccess("inventory", "transfer"))
}
