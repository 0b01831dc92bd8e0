package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// ClientCognito operations manage app clients on the cognito manager.
type ClientCognito string

const (
	CreateClientCognito   ClientCognito = "CREATE_CLIENT_COGNITO"
	FindClientCognito     ClientCognito = "FIND_CLIENT_COGNITO"
	FindClientCognitoByID ClientCognito = "FIND_BY_ID_CLIENT_COGNITO"
	FindOneClientCognito  ClientCognito = "FIND_ONE_CLIENT_COGNITO"
	UpdateClientCognito   ClientCognito = "UPDATE_CLIENT_COGNITO"
	DeleteClientCognito   ClientCognito = "DELETE_CLIENT_COGNITO"
	TotalClientCognito    ClientCognito = "TOTAL_CLIENT_COGNITO"
)

// ClientCognitos lists every ClientCognito operation.
func ClientCognitos() []ClientCognito {
	return []ClientCognito{
		CreateClientCognito,
		FindClientCognito,
		FindClientCognitoByID,
		FindOneClientCognito,
		UpdateClientCognito,
		DeleteClientCognito,
		TotalClientCognito,
	}
}

func (o ClientCognito) String() string { return string(o) }

func (ClientCognito) Destination() rpc.Destination { return CognitoQueue }

func (o ClientCognito) Valid() bool { return contains(ClientCognitos(), o) }
