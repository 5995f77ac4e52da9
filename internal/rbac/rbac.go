// Package rbac is the single authoritative role/permission lookup. Services
// never inspect roles directly; they ask for a permission.
package rbac

// Role constants
const (
	RoleAdmin    = "admin"
	RoleLandlord = "landlord"
	RoleSeeker   = "seeker"
)

// Permission constants
const (
	PermManageListing    = "manage_listing"
	PermManageSlots      = "manage_slots"
	PermStartTransaction = "start_transaction"
	PermGenerateContract = "generate_contract"
	PermSignContract     = "sign_contract"
	PermConfirmMoveIn    = "confirm_move_in"
	PermRequestViewing   = "request_viewing"
	PermPayDeposit       = "pay_deposit"
	PermAdministrate     = "administrate"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermManageListing, PermManageSlots, PermStartTransaction,
		PermGenerateContract, PermSignContract, PermConfirmMoveIn,
		PermRequestViewing, PermPayDeposit, PermAdministrate,
	},
	RoleLandlord: {
		PermManageListing, PermManageSlots, PermStartTransaction,
		PermGenerateContract, PermSignContract, PermConfirmMoveIn,
	},
	RoleSeeker: {
		PermRequestViewing, PermSignContract, PermPayDeposit,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

func IsAdmin(role string) bool {
	return role == RoleAdmin
}
