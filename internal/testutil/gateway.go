package testutil

import (
	"fieldsync/internal/gateway"
)

// NewTestGateway creates an in-memory remote with the given locations.
func NewTestGateway(locations ...string) *gateway.MemoryGateway {
	return gateway.NewMemoryGateway(locations...)
}

// NewConnectivity creates a switchable connectivity stub.
func NewConnectivity(online bool) *gateway.StaticConnectivity {
	return gateway.NewStaticConnectivity(online)
}
