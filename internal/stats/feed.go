package stats

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fmc-ops/opsdash/internal/result"
)

// FeedRepository reads the optional alerts and activity tables.
type FeedRepository interface {
	Alerts(ctx context.Context, unreadOnly bool, limit int) ([]Alert, error)
	MarkAlertRead(ctx context.Context, id string) error
	Activity(ctx context.Context, limit int) ([]Activity, error)
}

// MemoryFeed serves the alert and activity feeds in mock mode.
type MemoryFeed struct {
	mu       sync.Mutex
	alerts   []Alert
	activity []Activity
}

// NewMemoryFeed copies alerts and activity into a new feed.
func NewMemoryFeed(alerts []Alert, activity []Activity) *MemoryFeed {
	return &MemoryFeed{
		alerts:   append([]Alert(nil), alerts...),
		activity: append([]Activity(nil), activity...),
	}
}

// NewSeededFeed is a feed holding SeedAlerts and SeedActivity.
func NewSeededFeed() *MemoryFeed {
	return NewMemoryFeed(SeedAlerts(), SeedActivity())
}

func (f *MemoryFeed) Alerts(_ context.Context, unreadOnly bool, limit int) ([]Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Alert, 0, len(f.alerts))
	for _, a := range f.alerts {
		if unreadOnly && a.Read {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *MemoryFeed) MarkAlertRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			f.alerts[i].Read = true
		}
	}
	return nil
}

func (f *MemoryFeed) Activity(_ context.Context, limit int) ([]Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]Activity(nil), f.activity...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PGFeed reads the alerts and activity tables. Either may be absent; the
// classifier turns that into an empty result.
type PGFeed struct {
	pool *pgxpool.Pool
}

func NewPGFeed(pool *pgxpool.Pool) *PGFeed {
	return &PGFeed{pool: pool}
}

var errFeedNotConfigured = result.Sentinel(result.KindConfig, "Backend not configured. Set BACKEND_URL and BACKEND_API_KEY.")

func (f *PGFeed) Alerts(ctx context.Context, unreadOnly bool, limit int) ([]Alert, error) {
	if f.pool == nil {
		return nil, errFeedNotConfigured
	}
	query := `SELECT id::text, COALESCE(type, ''), COALESCE(title, ''), COALESCE(message, ''),
		amount::float8, "timestamp", COALESCE(read, false)
		FROM alerts`
	if unreadOnly {
		query += ` WHERE read = false`
	}
	query += ` ORDER BY "timestamp" DESC LIMIT $1`

	rows, err := f.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("stats: alerts: %w", err)
	}
	defer rows.Close()

	out := []Alert{}
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.Type, &a.Title, &a.Message, &a.Amount, &a.Timestamp, &a.Read); err != nil {
			return nil, fmt.Errorf("stats: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (f *PGFeed) MarkAlertRead(ctx context.Context, id string) error {
	if f.pool == nil {
		return errFeedNotConfigured
	}
	if _, err := f.pool.Exec(ctx, `UPDATE alerts SET read = true WHERE id::text = $1`, id); err != nil {
		return fmt.Errorf("stats: mark alert read: %w", err)
	}
	return nil
}

func (f *PGFeed) Activity(ctx context.Context, limit int) ([]Activity, error) {
	if f.pool == nil {
		return nil, errFeedNotConfigured
	}
	rows, err := f.pool.Query(ctx, `
		SELECT id::text, COALESCE(action, ''), COALESCE(type, ''), COALESCE(description, ''),
		       COALESCE("user", ''), "timestamp"
		FROM activity
		ORDER BY "timestamp" DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("stats: activity: %w", err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Action, &a.Type, &a.Description, &a.User, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("stats: scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
