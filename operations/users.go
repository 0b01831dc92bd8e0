package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// User operations are served by the users queue.
type User string

const (
	CreateUser   User = "CREATE_USER"
	FindUser     User = "FIND_USER"
	FindUserByID User = "FIND_BY_ID_USER"
	FindOneUser  User = "FIND_ONE_USER"
	UpdateUser   User = "UPDATE_USER"
	DeleteUser   User = "DELETE_USER"
	TotalUser    User = "TOTAL_USER"
)

// Users lists every User operation.
func Users() []User {
	return []User{
		CreateUser,
		FindUser,
		FindUserByID,
		FindOneUser,
		UpdateUser,
		DeleteUser,
		TotalUser,
	}
}

func (o User) String() string { return string(o) }

func (User) Destination() rpc.Destination { return UsersQueue }

func (o User) Valid() bool { return contains(Users(), o) }
