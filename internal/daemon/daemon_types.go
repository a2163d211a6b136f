package daemon

import (
	"github.com/adcondev/printbridge/internal/printer"
)

// HealthResponse is the body of the /health endpoint.
type HealthResponse struct {
	Status   string          `json:"status"`
	Platform string          `json:"platform"`
	Queue    QueueStatus     `json:"queue"`
	Worker   WorkerStatus    `json:"worker"`
	Clients  int             `json:"clients"`
	Printers printer.Summary `json:"printers"`
	Build    BuildInfo       `json:"build"`
	Uptime   int             `json:"uptime_seconds"`
}

// QueueStatus is the worker queue occupancy.
type QueueStatus struct {
	Current     int     `json:"current"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

// WorkerStatus is the worker pool state.
type WorkerStatus struct {
	Running       bool  `json:"running"`
	Workers       int   `json:"workers"`
	JobsProcessed int64 `json:"jobs_processed"`
	JobsFailed    int64 `json:"jobs_failed"`
	JobsRejected  int64 `json:"jobs_rejected"`
}

// BuildInfo describes the running build.
type BuildInfo struct {
	Env  string `json:"env"`
	Date string `json:"date"`
	Time string `json:"time"`
}
