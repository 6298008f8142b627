package services

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/mem"

	"tabpool-backend/models"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryReader returns host memory totals in bytes.
type MemoryReader func(ctx context.Context) (total, available uint64, err error)

// HostMemory reads virtual memory stats of the host.
func HostMemory(ctx context.Context) (uint64, uint64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

// HealthService handles health check business logic
type HealthService struct {
	store   Pinger
	driver  string
	version string
	memory  MemoryReader
}

// NewHealthService creates a new health service
func NewHealthService(store Pinger, driver, version string) *HealthService {
	return &HealthService{store: store, driver: driver, version: version, memory: HostMemory}
}

// WithMemoryReader replaces the host memory source.
func (s *HealthService) WithMemoryReader(r MemoryReader) *HealthService {
	s.memory = r
	return s
}

// GetHealthStatus returns current health status
func (s *HealthService) GetHealthStatus(ctx context.Context) *models.HealthResponse {
	resp := &models.HealthResponse{
		Status:    "healthy",
		Message:   "Pool service is running",
		Store:     s.driver,
		Version:   s.version,
		Timestamp: time.Now().Unix(),
	}
	if s.memory != nil {
		if total, avail, err := s.memory(ctx); err == nil {
			resp.Memory = &models.MemoryStats{Total: total, Available: avail}
		}
	}
	if s.store == nil {
		return resp
	}
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Message = "store unreachable: " + err.Error()
	}
	return resp
}
