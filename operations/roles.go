package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// Role operations are served by the access control queue.
type Role string

const (
	CreateRole   Role = "CREATE_ROL"
	FindRole     Role = "FIND_ROL"
	FindRoleByID Role = "FIND_BY_ID_ROL"
	FindOneRole  Role = "FIND_ONE_ROL"
	UpdateRole   Role = "UPDATE_ROL"
	PatchRole    Role = "PATCH_ROL"
	DeleteRole   Role = "DELETE_ROL"
	ValidRole    Role = "VALID_ROL"
	TotalRole    Role = "TOTAL_ROL"
)

// Roles lists every Role operation.
func Roles() []Role {
	return []Role{
		CreateRole,
		FindRole,
		FindRoleByID,
		FindOneRole,
		UpdateRole,
		PatchRole,
		DeleteRole,
		ValidRole,
		TotalRole,
	}
}

func (o Role) String() string { return string(o) }

func (Role) Destination() rpc.Destination { return AccessControlQueue }

func (o Role) Valid() bool { return contains(Roles(), o) }
