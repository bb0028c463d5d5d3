package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"evalreport/internal/infrastructure"
)

// StatusProvider exposes the report status checked by readiness.
type StatusProvider interface {
	Status() Status
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	reports   StatusProvider
	users     int
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service reporting on reports. users is
// the number of configured accounts.
func NewHealthService(version, buildTime string, reports StatusProvider, users int, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		reports:   reports,
		users:     users,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck is ready once a dataset has been loaded and at least one
// account can log in. A stale dataset is still ready.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"dataset": hs.checkDataset(),
			"auth":    hs.checkAuth(),
		},
	}

	for name, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "service not ready",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   infrastructure.CollectRuntimeStats(hs.startTime).FormatStats(),
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkDataset() ServiceHealth {
	if hs.reports == nil {
		return ServiceHealth{Status: "not_ready", Message: "report service not initialized"}
	}

	st := hs.reports.Status()
	if !st.Loaded {
		msg := "no dataset loaded yet"
		if st.LastError != "" {
			msg = st.LastError
		}
		return ServiceHealth{Status: "not_ready", Message: msg}
	}
	if st.Load.Stale {
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("serving data loaded at %s: %s", st.Load.LoadedAt.Format(time.RFC3339), st.LastError),
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d records from %d tabs", st.Records, st.Tabs),
	}
}

func (hs *HealthService) checkAuth() ServiceHealth {
	if hs.users == 0 {
		return ServiceHealth{Status: "not_ready", Message: "no users configured"}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("%d users configured", hs.users)}
}
