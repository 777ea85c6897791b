package upload

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fmc-ops/opsdash/internal/result"
)

const (
	recentKey = "opsdash:uploads:recent"
	// RecentCap is how many uploads the log keeps.
	RecentCap = 50
	// DefaultRecentLimit is the page size of Recent.
	DefaultRecentLimit = 10
)

// Entry is one line of the recent uploads log.
type Entry struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Type       string    `json:"type,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// RecentLog keeps the latest uploads, newest first, in a Redis list. A
// process-local copy serves reads when Redis is absent or failing.
type RecentLog struct {
	client *redis.Client
	logger *slog.Logger

	mu  sync.Mutex
	mem []Entry
}

// NewRecentLog builds a log. client may be nil. seed is listed newest first.
func NewRecentLog(client *redis.Client, logger *slog.Logger, seed ...Entry) *RecentLog {
	if logger == nil {
		logger = slog.Default()
	}
	l := &RecentLog{client: client, logger: logger}
	l.mem = append(l.mem, seed...)
	return l
}

// MockEntries is the fixed history shown in mock mode.
func MockEntries(now time.Time) []Entry {
	return []Entry{
		{ID: "1", Filename: "invoice_2024_001.pdf", Status: "completed", Type: "invoice", UploadedAt: now},
		{ID: "2", Filename: "order_2024_045.pdf", Status: "completed", Type: "order", UploadedAt: now.Add(-time.Hour)},
	}
}

// Add records an upload.
func (l *RecentLog) Add(ctx context.Context, e Entry) {
	l.mu.Lock()
	l.mem = append([]Entry{e}, l.mem...)
	if len(l.mem) > RecentCap {
		l.mem = l.mem[:RecentCap]
	}
	l.mu.Unlock()

	if l.client == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		l.logger.Warn("encode recent upload", slog.Any("error", err))
		return
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, recentKey, raw)
		pipe.LTrim(ctx, recentKey, 0, RecentCap-1)
		return nil
	})
	if err != nil {
		l.logger.Warn("record recent upload", slog.String("id", e.ID), slog.Any("error", err))
	}
}

// Recent lists up to limit uploads, newest first. A non-positive limit uses
// DefaultRecentLimit.
func (l *RecentLog) Recent(ctx context.Context, limit int) result.Result[[]Entry] {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > RecentCap {
		limit = RecentCap
	}
	if l.client != nil {
		values, err := l.client.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
		if err == nil {
			out := make([]Entry, 0, len(values))
			for _, v := range values {
				var e Entry
				if jerr := json.Unmarshal([]byte(v), &e); jerr != nil {
					l.logger.Warn("skip malformed recent upload", slog.Any("error", jerr))
					continue
				}
				out = append(out, e)
			}
			return result.Ok(out)
		}
		l.logger.Warn("list recent uploads, using local copy", slog.Any("error", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	n := min(limit, len(l.mem))
	out := make([]Entry, n)
	copy(out, l.mem[:n])
	return result.Ok(out)
}
