package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/operations"
)

func TestOperations_BelongToTheirDestination(t *testing.T) {
	seen := map[string]rpc.Destination{}

	for _, dest := range operations.Destinations() {
		ops := operations.All(dest)
		require.NotEmpty(t, ops, dest)

		for _, op := range ops {
			assert.Equal(t, dest, op.Destination(), op.String())
			assert.True(t, op.Valid(), op.String())

			prev, dup := seen[op.String()]
			assert.False(t, dup, "operation %s declared on %s and %s", op, prev, dest)
			seen[op.String()] = dest
		}
	}
}

func TestOperations_ValidRejectsForeignValues(t *testing.T) {
	assert.False(t, operations.User("FIND_ROL").Valid())
	assert.False(t, operations.Role("").Valid())
	assert.True(t, operations.FindRole.Valid())
}

func TestLookup(t *testing.T) {
	op, ok := operations.Lookup(operations.CognitoQueue, "FIND_BY_ID_AUTH_USER")
	require.True(t, ok)
	assert.Equal(t, operations.FindAuthUserByID, op)

	op, ok = operations.Lookup(operations.CognitoQueue, "TOTAL_CLIENT_COGNITO")
	require.True(t, ok)
	assert.Equal(t, operations.TotalClientCognito, op)

	_, ok = operations.Lookup(operations.UsersQueue, "FIND_BY_ID_AUTH_USER")
	assert.False(t, ok)

	_, ok = operations.Lookup("unknown", "FIND_USER")
	assert.False(t, ok)
}
