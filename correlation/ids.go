package correlation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/xid"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
)

// Configuration names of the id generators.
const (
	IDFormatUUID = "uuid"
	IDFormatXID  = "xid"
)

// IDGenerator produces correlation ids. One generator serves the whole process
// so ids stay unique across every proxy sharing a registry.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator returns random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// XIDGenerator returns sortable 20 character xids.
type XIDGenerator struct{}

func (XIDGenerator) NewID() string { return xid.New().String() }

// GeneratorByName selects a generator by its configuration name ("uuid" or "xid").
func GeneratorByName(name string) (IDGenerator, error) { //nolint:ireturn
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", IDFormatUUID:
		return UUIDGenerator{}, nil
	case IDFormatXID:
		return XIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("id format %q: %w", name, berr.ErrInvalidConfig)
	}
}
