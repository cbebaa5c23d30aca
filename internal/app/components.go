package app

import (
	pkgsync "github.com/urbanmap/tilesync/internal/sync"
	"github.com/urbanmap/tilesync/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Managers run the sync pipeline, one per configured dataset
	Managers []*pkgsync.Manager

	// SyncCoordinator triggers scheduled runs
	SyncCoordinator coordinator.Coordinator
}

// services returns the managers as the Service surface consumed by the API.
func (c *AppComponents) services() []pkgsync.Service {
	services := make([]pkgsync.Service, 0, len(c.Managers))
	for _, m := range c.Managers {
		services = append(services, m)
	}
	return services
}
