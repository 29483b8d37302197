package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/oklog/ulid/v2"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/jmylchreest/dlnad/internal/repository"
	"github.com/jmylchreest/dlnad/internal/version"
)

// Rescanner triggers and reports catalog scans.
type Rescanner interface {
	Scanning() bool
	ScanAll(ctx context.Context) error
}

// Admin registers the management API endpoints.
type Admin struct {
	objects   repository.ObjectRepository
	details   repository.DetailRepository
	updateID  func() uint32
	rescanner Rescanner
	logger    *slog.Logger
	startTime time.Time
}

// NewAdmin creates the management API handler.
func NewAdmin(
	objects repository.ObjectRepository,
	details repository.DetailRepository,
	updateID func() uint32,
	rescanner Rescanner,
	logger *slog.Logger,
) *Admin {
	return &Admin{
		objects:   objects,
		details:   details,
		updateID:  updateID,
		rescanner: rescanner,
		logger:    logger.With("component", "admin"),
		startTime: time.Now(),
	}
}

// Register registers the admin routes with the API.
func (a *Admin) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, a.getHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/v1/status",
		Summary:     "Catalog and system status",
		Tags:        []string{"System"},
	}, a.getStatus)

	huma.Register(api, huma.Operation{
		OperationID: "startRescan",
		Method:      "POST",
		Path:        "/api/v1/rescan",
		Summary:     "Start a full media rescan",
		Tags:        []string{"Catalog"},
	}, a.startRescan)
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

func (a *Admin) getHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{
		Body: HealthResponse{
			Status:    "healthy",
			Version:   version.Version,
			Uptime:    time.Since(a.startTime).Round(time.Second).String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// HostInfo carries basic system information.
type HostInfo struct {
	Hostname      string  `json:"hostname,omitempty"`
	Platform      string  `json:"platform,omitempty"`
	UptimeSeconds uint64  `json:"uptime_seconds,omitempty"`
	Load1Min      float64 `json:"load_1min"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
}

// StatusResponse is the catalog status payload.
type StatusResponse struct {
	Videos         int64    `json:"videos"`
	Details        int64    `json:"details"`
	SystemUpdateID uint32   `json:"system_update_id"`
	Scanning       bool     `json:"scanning"`
	Host           HostInfo `json:"host"`
}

// StatusOutput is the output for the status endpoint.
type StatusOutput struct {
	Body StatusResponse
}

func (a *Admin) getStatus(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	videos, err := a.objects.CountByClass(ctx, "item.videoItem")
	if err != nil {
		return nil, huma.Error500InternalServerError("counting videos", err)
	}
	details, err := a.details.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("counting details", err)
	}

	return &StatusOutput{
		Body: StatusResponse{
			Videos:         videos,
			Details:        details,
			SystemUpdateID: a.updateID(),
			Scanning:       a.rescanner.Scanning(),
			Host:           a.hostInfo(ctx),
		},
	}, nil
}

func (a *Admin) hostInfo(ctx context.Context) HostInfo {
	info := HostInfo{}
	if hi, err := host.InfoWithContext(ctx); err == nil && hi != nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.UptimeSeconds = hi.Uptime
	}
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		info.Load1Min = avg.Load1
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
		info.MemoryTotalMB = float64(vm.Total) / 1024 / 1024
	}
	return info
}

// RescanResponse reports a started scan job.
type RescanResponse struct {
	JobID   string `json:"job_id"`
	Started bool   `json:"started"`
}

// RescanOutput is the output for the rescan endpoint.
type RescanOutput struct {
	Body RescanResponse
}

func (a *Admin) startRescan(ctx context.Context, _ *struct{}) (*RescanOutput, error) {
	if a.rescanner.Scanning() {
		return nil, huma.Error409Conflict("scan already in progress")
	}

	jobID := ulid.Make().String()
	go func() {
		logger := a.logger.With("job_id", jobID)
		logger.Info("rescan started")
		if err := a.rescanner.ScanAll(context.Background()); err != nil {
			logger.Error("rescan failed", "error", err)
			return
		}
		logger.Info("rescan finished")
	}()

	return &RescanOutput{Body: RescanResponse{JobID: jobID, Started: true}}, nil
}
