package gateway

import (
	"fmt"

	"fieldsync/internal/config"
	"fieldsync/internal/fieldsync"
)

// NewGatewayFromConfig creates the remote gateway selected by cfg.Type.
func NewGatewayFromConfig(cfg config.RemoteConfig, logger fieldsync.Logger, clock fieldsync.Clock) (fieldsync.Gateway, error) {
	switch cfg.Type {
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("url required for http remote")
		}
		return NewHTTPGateway(cfg.URL, cfg.Timeout(), logger, clock), nil
	case "memory":
		return NewMemoryGateway(cfg.Locations...), nil
	default:
		return nil, fmt.Errorf("unknown remote type: %q", cfg.Type)
	}
}

// NewConnectivityFromConfig creates the connectivity check selected by
// cfg.Mode. Probing an in-process remote always succeeds.
func NewConnectivityFromConfig(cfg config.ConnectivityConfig, remote config.RemoteConfig) (fieldsync.Connectivity, error) {
	switch cfg.Mode {
	case "online":
		return NewStaticConnectivity(true), nil
	case "offline":
		return NewStaticConnectivity(false), nil
	case "probe", "":
		if remote.Type != "http" {
			return NewStaticConnectivity(true), nil
		}
		return NewHTTPProbe(remote.URL, cfg.ProbeTimeout()), nil
	default:
		return nil, fmt.Errorf("unknown connectivity mode: %q", cfg.Mode)
	}
}
