package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// Logical destinations, one per backend service queue.
const (
	UsersQueue          rpc.Destination = "users"
	CognitoQueue        rpc.Destination = "manager-cognito"
	AccessControlQueue  rpc.Destination = "access-control"
	OrganizationQueue   rpc.Destination = "organization"
	OrderProcessorQueue rpc.Destination = "order-processor"
)

// Destinations lists every logical destination.
func Destinations() []rpc.Destination {
	return []rpc.Destination{UsersQueue, CognitoQueue, AccessControlQueue, OrganizationQueue, OrderProcessorQueue}
}

// Lookup resolves an operation name against the enumeration of a destination.
// It is used by tooling (the CLI) that receives names as free text.
func Lookup(dest rpc.Destination, name string) (rpc.Operation, bool) { //nolint:ireturn
	for _, op := range All(dest) {
		if op.String() == name {
			return op, true
		}
	}

	return nil, false
}

// All returns the operations declared for dest.
func All(dest rpc.Destination) []rpc.Operation {
	var out []rpc.Operation
	switch dest {
	case UsersQueue:
		out = appendOps(out, Users()...)
	case CognitoQueue:
		out = appendOps(out, AuthUsers()...)
		out = appendOps(out, ClientCognitos()...)
	case AccessControlQueue:
		out = appendOps(out, Roles()...)
		out = appendOps(out, Permissions()...)
	case OrganizationQueue:
		out = appendOps(out, Organizations()...)
	case OrderProcessorQueue:
		out = appendOps(out, OrderProcessors()...)
	}

	return out
}

func appendOps[O rpc.Operation](dst []rpc.Operation, ops ...O) []rpc.Operation {
	for _, op := range ops {
		dst = append(dst, op)
	}

	return dst
}

func contains[O comparable](set []O, v O) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}

	return false
}
