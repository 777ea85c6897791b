// Package stats computes the dashboard summary and serves the alert and
// activity feeds.
package stats

import "time"

// DefaultHighValueThreshold marks an order as high value.
const DefaultHighValueThreshold = 50000

// AlertLimit caps one alert listing.
const AlertLimit = 20

// DefaultActivityLimit applies when a caller asks for no particular count.
const DefaultActivityLimit = 10

// Alert types.
const (
	AlertHighValue = "high_value"
	AlertOverdue   = "overdue"
	AlertProcessed = "processed"
)

// Dashboard is the summary card set.
type Dashboard struct {
	TotalOrders           int     `json:"totalOrders"`
	TotalInvoices         int     `json:"totalInvoices"`
	TotalOrderAmount      float64 `json:"totalOrderAmount"`
	TotalInvoiceAmount    float64 `json:"totalInvoiceAmount"`
	PendingOrders         int     `json:"pendingOrders"`
	PendingInvoices       int     `json:"pendingInvoices"`
	OverdueInvoices       int     `json:"overdueInvoices"`
	HighValueTransactions int     `json:"highValueTransactions"`
	MonthlyGrowth         float64 `json:"monthlyGrowth"`
	ProcessedToday        int     `json:"processedToday"`
	ActiveSuppliers       int     `json:"activeSuppliers"`
}

// Alert is produced by an external process; this service only reads it and
// marks it read.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Amount    *float64  `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	User        string    `json:"user"`
	Timestamp   time.Time `json:"timestamp"`
}

// AlertRef identifies an alert that was marked read.
type AlertRef struct {
	ID string `json:"id"`
}

func ts(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func amt(v float64) *float64 { return &v }

// SeedAlerts returns a fresh copy of the demonstration alerts.
func SeedAlerts() []Alert {
	return []Alert{
		{ID: "alert-001", Type: AlertHighValue, Title: "High-Value Transaction", Message: "Order #559e3a6d from TechCorp Inc exceeds $50,000 threshold", Amount: amt(120000), Timestamp: ts("2024-12-20T10:30:00Z")},
		{ID: "alert-002", Type: AlertHighValue, Title: "High-Value Transaction", Message: "Invoice #c3d4e5f6 from Global Supplies Ltd exceeds threshold", Amount: amt(110000), Timestamp: ts("2024-12-17T10:45:00Z")},
		{ID: "alert-003", Type: AlertOverdue, Title: "Overdue Invoice", Message: "Invoice #c3d4e5f6 from Global Supplies Ltd is overdue", Amount: amt(110000), Timestamp: ts("2024-12-19T09:00:00Z"), Read: true},
		{ID: "alert-004", Type: AlertProcessed, Title: "Document Processed", Message: "New invoice from TOKYO-YA, S.A. processed successfully", Amount: amt(62192), Timestamp: ts("2024-12-20T09:00:00Z"), Read: true},
	}
}

// SeedActivity returns a fresh copy of the demonstration activity feed.
func SeedActivity() []Activity {
	return []Activity{
		{ID: "act-001", Action: "created", Type: "order", Description: "New order created for TechCorp Inc", User: "System", Timestamp: ts("2024-12-20T10:30:00Z")},
		{ID: "act-002", Action: "processed", Type: "invoice", Description: "Invoice from TOKYO-YA processed via Email", User: "Auto-Process", Timestamp: ts("2024-12-20T09:00:00Z")},
		{ID: "act-003", Action: "updated", Type: "order", Description: "Order #35711826 marked as completed", User: "Admin", Timestamp: ts("2024-12-19T16:45:00Z")},
		{ID: "act-004", Action: "exported", Type: "report", Description: "Monthly orders report exported", User: "Admin", Timestamp: ts("2024-12-19T14:30:00Z")},
		{ID: "act-005", Action: "alert", Type: "notification", Description: "High-value transaction alert triggered", User: "System", Timestamp: ts("2024-12-17T10:45:00Z")},
	}
}
