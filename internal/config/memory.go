package config

import (
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// DefaultCacheFraction is the share of available memory given to the tile
// read cache.
const DefaultCacheFraction = 0.25

const (
	minCacheBytes = 64 << 20
	maxCacheBytes = 8 << 30
)

// virtualMemory is swapped out in tests.
var virtualMemory = mem.VirtualMemory

// CacheBudget returns fraction of the currently available memory, clamped to
// [64 MiB, 8 GiB]. If memory cannot be queried the minimum is returned.
func CacheBudget(fraction float64, logger logrus.FieldLogger) int64 {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	vm, err := virtualMemory()
	if err != nil {
		logger.WithError(err).Warn("Cannot detect available memory; using minimal tile cache")
		return minCacheBytes
	}
	limit := int64(float64(vm.Available) * fraction)
	switch {
	case limit < minCacheBytes:
		limit = minCacheBytes
	case limit > maxCacheBytes:
		limit = maxCacheBytes
	}
	logger.WithFields(logrus.Fields{
		"available_mb": vm.Available >> 20,
		"total_mb":     vm.Total >> 20,
		"cache_mb":     limit >> 20,
	}).Debug("Sized tile cache")
	return limit
}
