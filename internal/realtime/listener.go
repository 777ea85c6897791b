package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultChannel is the NOTIFY channel the change trigger writes to.
const DefaultChannel = "opsdash_changes"

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// PGListener turns PostgreSQL notifications into hub events.
type PGListener struct {
	pool    *pgxpool.Pool
	channel string
	out     Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewPGListener builds a listener on channel, DefaultChannel when blank.
func NewPGListener(pool *pgxpool.Pool, channel string, out Publisher, logger *slog.Logger) *PGListener {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PGListener{
		pool:    pool,
		channel: channel,
		out:     out,
		logger:  logger.With(slog.String("component", "pg_listener"), slog.String("channel", channel)),
		now:     time.Now,
	}
}

// Run listens until ctx is done, reconnecting with exponential backoff.
func (l *PGListener) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		started := time.Now()
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > maxBackoff {
			backoff = minBackoff
		}
		l.logger.Warn("listener disconnected", slog.Any("error", err), slog.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// A LISTENing connection must not go back to the pool.
	conn := pooled.Hijack()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.logger.Info("listening for changes")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := DecodeEvent([]byte(n.Payload), l.now())
		if err != nil {
			l.logger.Warn("dropping malformed notification", slog.Any("error", err))
			continue
		}
		l.out.Publish(ev)
	}
}

