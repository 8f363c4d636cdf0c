package observe

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a point-in-time reading of the supervisor host
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
}

// ReadHostStats samples host CPU and memory for the metrics endpoint.
// Failures degrade to zero values rather than failing the scrape.
func ReadHostStats() HostStats {
	var stats HostStats

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		stats.CPUPercent = percentages[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemUsedBytes = vm.Used
		stats.MemTotalBytes = vm.Total
	}

	return stats
}
