package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenMTS/internal/config"
	"github.com/KevinKickass/OpenMTS/internal/machine"
)

// SystemStatus represents the current daemon state
type SystemStatus struct {
	State         string `json:"state"`
	Simulated     bool   `json:"simulated"`
	Port          string `json:"port,omitempty"`
	ModuleCount   int    `json:"module_count"`
	OutputCount   int    `json:"output_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Error         string `json:"error,omitempty"`
}

type LifecycleManager interface {
	Config() *config.Config
	Generator() *machine.Orchestrator
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
