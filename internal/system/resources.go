package system

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Resources is a host snapshot reported by the feed server's health check.
type Resources struct {
	CPUs           int     `json:"cpus"`
	MemTotal       uint64  `json:"mem_total"`
	MemAvailable   uint64  `json:"mem_available"`
	MemUsedPercent float64 `json:"mem_used_percent"`
}

func ReadResources(ctx context.Context) (Resources, error) {
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return Resources{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Resources{}, err
	}
	return Resources{
		CPUs:           cpus,
		MemTotal:       vm.Total,
		MemAvailable:   vm.Available,
		MemUsedPercent: vm.UsedPercent,
	}, nil
}
