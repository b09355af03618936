package common

import (
	"runtime"

	"github.com/gigurra/soundstage/cmd/engine/visual"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MinMemory and MinCPUs mark the boundary of a constrained host.
const (
	MinMemory = 2 << 30
	MinCPUs   = 2
)

func Constrained(totalMemory uint64, cpus int) bool {
	return (totalMemory > 0 && totalMemory < MinMemory) || (cpus > 0 && cpus < MinCPUs)
}

// HostProfile resolves SOUNDSTAGE_CONSTRAINED. "auto" inspects the host.
func HostProfile(mode string) visual.Profile {
	switch mode {
	case "true", "1", "yes":
		return visual.Profile{Constrained: true}
	case "false", "0", "no":
		return visual.Profile{}
	}

	var total uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		total = vm.Total
	}
	cpus, err := cpu.Counts(true)
	if err != nil || cpus == 0 {
		cpus = runtime.NumCPU()
	}
	return visual.Profile{Constrained: Constrained(total, cpus)}
}
