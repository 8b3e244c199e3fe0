package scheduler

import (
	"sync"

	"github.com/rahulnat/sentinelq/pkg/models"
)

// resourceLedger tracks the memory/CPU budget currently committed to running
// jobs. A job is admitted only if its requirements fit under the configured
// limits; release floors at zero to tolerate double-release races.
type resourceLedger struct {
	mu          sync.Mutex
	limitMemory int
	limitCPU    float64
	usedMemory  int
	usedCPU     float64
}

func newResourceLedger(limitMemoryMB int, limitCPUCores float64) *resourceLedger {
	return &resourceLedger{
		limitMemory: limitMemoryMB,
		limitCPU:    limitCPUCores,
	}
}

// canAdmit reports whether req fits within the remaining budget.
func (l *resourceLedger) canAdmit(req models.ResourceRequirements) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usedMemory+req.MemoryMB <= l.limitMemory &&
		l.usedCPU+req.CPUCores <= l.limitCPU
}

// tryAcquire commits req to the ledger if it fits, returning whether it did.
func (l *resourceLedger) tryAcquire(req models.ResourceRequirements) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.usedMemory+req.MemoryMB > l.limitMemory ||
		l.usedCPU+req.CPUCores > l.limitCPU {
		return false
	}
	l.usedMemory += req.MemoryMB
	l.usedCPU += req.CPUCores
	return true
}

// release returns req to the available budget.
func (l *resourceLedger) release(req models.ResourceRequirements) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usedMemory -= req.MemoryMB
	if l.usedMemory < 0 {
		l.usedMemory = 0
	}
	l.usedCPU -= req.CPUCores
	if l.usedCPU < 0 {
		l.usedCPU = 0
	}
}

// usage returns the committed and limit figures for stats reporting.
func (l *resourceLedger) usage() (usedMemoryMB int, usedCPUCores float64, limitMemoryMB int, limitCPUCores float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usedMemory, l.usedCPU, l.limitMemory, l.limitCPU
}
