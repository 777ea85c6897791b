package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalyticsWarmup precomputes the dashboard analytics.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskExportReport renders an export file and stores it.
	TaskExportReport = "export:report"
)

// Export kinds.
const (
	ExportOrders   = "orders"
	ExportInvoices = "invoices"
	ExportMonthly  = "monthly"
)

// WarmupCron runs the warmup every night.
const WarmupCron = "0 2 * * *"

// WarmupPayload is the warmup task body. Reason is informational.
type WarmupPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ExportPayload describes an export request.
type ExportPayload struct {
	Kind   string `json:"kind" validate:"required,oneof=orders invoices monthly"`
	Period string `json:"period,omitempty" validate:"omitempty,max=16"`
}

// NewWarmupTask constructs a warmup task.
func NewWarmupTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(WarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// NewExportTask constructs an export task.
func NewExportTask(payload ExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode export payload: %w", err)
	}
	return asynq.NewTask(TaskExportReport, data, asynq.MaxRetry(5), asynq.Timeout(5*time.Minute)), nil
}
