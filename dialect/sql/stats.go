package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/ormapi/dialect"
)

// QueryStats holds counters collected by a StatsDriver.
type QueryStats struct {
	Queries       atomic.Int64
	Execs         atomic.Int64
	Transactions  atomic.Int64
	Rollbacks     atomic.Int64
	SlowQueries   atomic.Int64
	Errors        atomic.Int64
	TotalDuration atomic.Int64 // nanoseconds
}

// Snapshot returns a point-in-time copy of the counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:       s.Queries.Load(),
		Execs:         s.Execs.Load(),
		Transactions:  s.Transactions.Load(),
		Rollbacks:     s.Rollbacks.Load(),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
	}
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	Queries       int64
	Execs         int64
	Transactions  int64
	Rollbacks     int64
	SlowQueries   int64
	Errors        int64
	TotalDuration time.Duration
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d txs=%d rollbacks=%d slow=%d errors=%d duration=%s",
		s.Queries, s.Execs, s.Transactions, s.Rollbacks, s.SlowQueries, s.Errors, s.TotalDuration,
	)
}

// StatsDriver wraps a dialect.Driver, counting statements and logging the
// ones that exceed the slow threshold.
type StatsDriver struct {
	dialect.Driver
	stats         *QueryStats
	slowThreshold time.Duration
	logger        *slog.Logger
	debug         bool
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithLogger sets the logger used for slow query and debug output.
func WithLogger(l *slog.Logger) StatsOption {
	return func(s *StatsDriver) {
		s.logger = l
	}
}

// WithDebug logs every statement at debug level.
func WithDebug() StatsOption {
	return func(s *StatsDriver) {
		s.debug = true
	}
}

// NewStatsDriver wraps drv with statistics collection.
//
//	drv, _ := sql.Open("postgres", dsn)
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	engine := mutation.NewEngine(stats, registry)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters of the driver.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, args, start, err, true)
	return err
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, args, start, err, false)
	return err
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		d.stats.Errors.Add(1)
		return nil, err
	}
	d.stats.Transactions.Add(1)
	return &StatsTx{Tx: tx, driver: d}, nil
}

func (d *StatsDriver) record(ctx context.Context, query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		d.stats.Queries.Add(1)
	} else {
		d.stats.Execs.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	if d.debug {
		d.logger.DebugContext(ctx, "sql statement", "query", query, "args", args, "duration", duration, "error", err)
	}
	if duration > d.slowThreshold {
		d.stats.SlowQueries.Add(1)
		d.logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
	}
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query executes a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, true)
	return err
}

// Exec executes a statement within the transaction and records statistics.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, false)
	return err
}

// Rollback rolls back the transaction and counts it.
func (tx *StatsTx) Rollback() error {
	tx.driver.stats.Rollbacks.Add(1)
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
)
