package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// Permission operations are served by the access control queue.
type Permission string

const (
	CreatePermission   Permission = "CREATE_PERMISSION"
	FindPermission     Permission = "FIND_PERMISSION"
	FindPermissionByID Permission = "FIND_BY_ID_PERMISSION"
	FindOnePermission  Permission = "FIND_ONE_PERMISSION"
	UpdatePermission   Permission = "UPDATE_PERMISSION"
	PatchPermission    Permission = "PATCH_PERMISSION"
	DeletePermission   Permission = "DELETE_PERMISSION"
	ValidPermission    Permission = "VALID_PERMISSION"
	TotalPermission    Permission = "TOTAL_PERMISSION"
)

// Permissions lists every Permission operation.
func Permissions() []Permission {
	return []Permission{
		CreatePermission,
		FindPermission,
		FindPermissionByID,
		FindOnePermission,
		UpdatePermission,
		PatchPermission,
		DeletePermission,
		ValidPermission,
		TotalPermission,
	}
}

func (o Permission) String() string { return string(o) }

func (Permission) Destination() rpc.Destination { return AccessControlQueue }

func (o Permission) Valid() bool { return contains(Permissions(), o) }
