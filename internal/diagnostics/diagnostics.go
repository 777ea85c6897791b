// Package diagnostics runs the connection checks behind the settings panel.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fmc-ops/opsdash/internal/result"
)

// Status of a single check.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

// Check is one line of a report.
type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Report is the outcome of Run.
type Report struct {
	Connected bool    `json:"connected"`
	Mode      string  `json:"mode"`
	Error     string  `json:"error,omitempty"`
	Tests     []Check `json:"tests"`
}

func (r *Report) add(name string, status Status, format string, args ...any) {
	r.Tests = append(r.Tests, Check{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

// Probe inspects the remote store.
type Probe interface {
	Count(ctx context.Context, table string) (int64, error)
	MissingColumns(ctx context.Context, table string, columns []string) ([]string, error)
}

var requiredColumns = map[string][]string{
	"orders":   {"id", "supplier", "status", "order_date", "total_amount"},
	"invoices": {"id", "supplier", "status", "invoice_date", "total_amount"},
}

var optionalTables = []string{"alerts", "activity"}

// Options describe the deployment being checked.
type Options struct {
	Mock       bool
	BackendURL string
	APIKey     string
	JWTSecret  string
	Realtime   bool
}

// Checker runs diagnostics against a probe.
type Checker struct {
	probe  Probe
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewChecker builds a Checker. probe may be nil in mock mode.
func NewChecker(probe Probe, opts Options, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{probe: probe, opts: opts, logger: logger, now: time.Now}
}

// WithNow overrides the clock used for key expiry.
func (c *Checker) WithNow(fn func() time.Time) {
	if fn != nil {
		c.now = fn
	}
}

// Run executes every check in order. Mock mode and missing credentials stop
// early; a missing or unreachable orders table stops after that check.
func (c *Checker) Run(ctx context.Context) Report {
	report := Report{Mode: "remote", Tests: []Check{}}
	if c.opts.Mock {
		report.Mode = "mock"
		report.add("Mock Data Mode", StatusInfo, "Using mock data - backend connection not required")
		return report
	}
	if strings.TrimSpace(c.opts.BackendURL) == "" || strings.TrimSpace(c.opts.APIKey) == "" || c.probe == nil {
		report.Error = "Backend credentials not configured"
		report.add("Configuration Check", StatusError, "Missing BACKEND_URL or BACKEND_API_KEY in .env.local")
		return report
	}
	report.add("Configuration Check", StatusSuccess, "Backend credentials are configured")

	c.checkKey(&report)
	if !c.checkOrders(ctx, &report) {
		c.logger.Warn("diagnostics stopped", slog.String("error", report.Error))
		return report
	}
	c.checkCount(ctx, &report, "invoices", "Invoices Table")
	for _, table := range []string{"orders", "invoices"} {
		c.checkSchema(ctx, &report, table)
	}
	for _, table := range optionalTables {
		c.checkOptional(ctx, &report, table)
	}
	if c.opts.Realtime {
		report.add("Realtime Subscriptions", StatusInfo, "Realtime is enabled (will work if tables exist)")
	} else {
		report.add("Realtime Subscriptions", StatusInfo, "Realtime is disabled")
	}
	return report
}

func (c *Checker) checkKey(report *Report) {
	info, err := InspectAPIKey(c.opts.APIKey, c.opts.JWTSecret, c.now())
	switch {
	case errors.Is(err, ErrKeyExpired):
		report.add("API Key", StatusError, "API key expired on %s", info.ExpiresAt.Format(time.RFC3339))
	case errors.Is(err, ErrKeySignature):
		report.add("API Key", StatusError, "API key signature does not match BACKEND_JWT_SECRET")
	case err != nil:
		report.add("API Key", StatusWarning, "API key is not a JWT; role and expiry unknown")
	default:
		role := info.Role
		if role == "" {
			role = "unknown"
		}
		expiry := "never expires"
		if info.ExpiresAt != nil {
			expiry = "expires " + info.ExpiresAt.Format("2006-01-02")
		}
		verified := ""
		if info.Verified {
			verified = ", signature verified"
		}
		report.add("API Key", StatusSuccess, "Role %s, %s%s", role, expiry, verified)
	}
}

func (c *Checker) checkOrders(ctx context.Context, report *Report) bool {
	n, err := c.probe.Count(ctx, "orders")
	switch {
	case err == nil:
		report.add("Orders Table", StatusSuccess, "Connected! Found %d orders", n)
		report.Connected = true
		return true
	case missingRelation(err):
		report.add("Orders Table", StatusError, "Orders table not found. Please create the orders table in your database.")
		report.Error = "Orders table not found"
	default:
		report.add("Orders Table", StatusError, "Connection error: %s", errMessage(err))
		report.Error = errMessage(err)
	}
	return false
}

func (c *Checker) checkCount(ctx context.Context, report *Report, table, name string) {
	n, err := c.probe.Count(ctx, table)
	switch {
	case err == nil:
		report.add(name, StatusSuccess, "Connected! Found %d %s", n, table)
	case missingRelation(err):
		report.add(name, StatusError, "%s table not found. Please create it in your database.", title(table))
	default:
		report.add(name, StatusError, "Error: %s", errMessage(err))
	}
}

func (c *Checker) checkSchema(ctx context.Context, report *Report, table string) {
	name := title(table) + " Schema"
	columns := requiredColumns[table]
	missing, err := c.probe.MissingColumns(ctx, table, columns)
	switch {
	case err != nil:
		report.add(name, StatusWarning, "Schema check failed: %s", errMessage(err))
	case len(missing) > 0:
		report.add(name, StatusError, "Missing required columns (%s). Expected: %s. See scripts/db/schema.sql",
			strings.Join(missing, ", "), strings.Join(columns, ", "))
	default:
		report.add(name, StatusSuccess, "All required columns exist")
	}
}

func (c *Checker) checkOptional(ctx context.Context, report *Report, table string) {
	name := title(table) + " Table"
	_, err := c.probe.Count(ctx, table)
	switch {
	case err == nil:
		report.add(name, StatusSuccess, "Table exists")
	case missingRelation(err):
		report.add(name, StatusInfo, "Table doesn't exist (optional - app works without it)")
	default:
		report.add(name, StatusWarning, "Error: %s", errMessage(err))
	}
}

func missingRelation(err error) bool {
	if errors.Is(err, result.ErrRelationMissing) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

func errMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Message != "" {
		return pgErr.Message
	}
	if result.IsNetwork(err) {
		return result.MsgNetwork
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error"
}

func title(table string) string {
	if table == "" {
		return table
	}
	return strings.ToUpper(table[:1]) + table[1:]
}

// PGProbe checks a PostgreSQL database.
type PGProbe struct {
	pool *pgxpool.Pool
}

func NewPGProbe(pool *pgxpool.Pool) *PGProbe {
	return &PGProbe{pool: pool}
}

// Count returns the row count of table.
func (p *PGProbe) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("diagnostics: count %s: %w", table, err)
	}
	return n, nil
}

// MissingColumns lists the columns of want that table lacks.
func (p *PGProbe) MissingColumns(ctx context.Context, table string, want []string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1`, table)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: columns %s: %w", table, err)
	}
	present, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("diagnostics: columns %s: %w", table, err)
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("diagnostics: columns %s: %w", table, result.ErrRelationMissing)
	}
	have := make(map[string]struct{}, len(present))
	for _, c := range present {
		have[c] = struct{}{}
	}
	var missing []string
	for _, c := range want {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing, nil
}
