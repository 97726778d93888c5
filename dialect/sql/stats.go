package sql

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/dbrest/dialect"
)

// QueryStats counts the statements a StatsDriver ran. Record reads are
// queries, writes and remodel statements are execs.
type QueryStats struct {
	TotalQueries  atomic.Int64
	TotalExecs    atomic.Int64
	TotalDuration atomic.Int64 // nanoseconds
	SlowQueries   atomic.Int64
	Errors        atomic.Int64
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset zeroes the counters. Tests reset before the operation they measure,
// e.g. to assert the number of queries of a join.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{&s.TotalQueries, &s.TotalExecs, &s.TotalDuration, &s.SlowQueries, &s.Errors} {
		c.Store(0)
	}
}

// StatsSnapshot is a copy of QueryStats at one point in time.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// Statements returns the number of queries and execs.
func (s StatsSnapshot) Statements() int64 { return s.TotalQueries + s.TotalExecs }

// AvgQueryDuration returns the mean duration of a statement.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	if n := s.Statements(); n > 0 {
		return s.TotalDuration / time.Duration(n)
	}
	return 0
}

// LogValue implements slog.LogValuer.
func (s StatsSnapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("queries", s.TotalQueries),
		slog.Int64("execs", s.TotalExecs),
		slog.Duration("avg", s.AvgQueryDuration()),
		slog.Int64("slow", s.SlowQueries),
		slog.Int64("errors", s.Errors),
	)
}

// SlowQueryHook is called with every statement slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver is a dialect.Driver counting the statements of the record
// store, the relation joiner and the reflector. Transactions it starts are
// counted too.
type StatsDriver struct {
	dialect.Driver
	stats *QueryStats
	slow  atomic.Int64 // threshold in nanoseconds
	hook  SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// The default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slow.Store(int64(d))
	}
}

// WithSlowQueryHook sets the function called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements as warnings. A nil logger means
// slog.Default.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow statement", "duration", duration, "query", query, "args", len(args))
	})
}

// NewStatsDriver wraps drv.
//
//	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(log))
//	svc, _ := service.New(stats, reflector)
//	svc.List(ctx, "orders", service.Params{Join: []string{"customers"}})
//	log.Info("list", "statements", stats.QueryStats().Stats())
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, stats: &QueryStats{}}
	s.slow.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters.
func (d *StatsDriver) QueryStats() *QueryStats { return d.stats }

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration { return time.Duration(d.slow.Load()) }

// SetSlowThreshold changes the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) { d.slow.Store(int64(threshold)) }

// Query implements the dialect.ExecQuerier interface.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.count(ctx, &d.stats.TotalQueries, query, args, func() error {
		return d.Driver.Query(ctx, query, args, v)
	})
}

// Exec implements the dialect.ExecQuerier interface.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.count(ctx, &d.stats.TotalExecs, query, args, func() error {
		return d.Driver.Exec(ctx, query, args, v)
	})
}

// count runs one statement and updates the counters.
func (d *StatsDriver) count(ctx context.Context, kind *atomic.Int64, query string, args any, run func() error) error {
	start := time.Now()
	err := run()
	took := time.Since(start)
	kind.Add(1)
	d.stats.TotalDuration.Add(int64(took))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	if took > d.SlowThreshold() {
		d.stats.SlowQueries.Add(1)
		if d.hook != nil {
			list, _ := args.([]any)
			d.hook(ctx, query, list, took)
		}
	}
	return err
}

// Tx implements the dialect.Driver interface.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx is a transaction started by a StatsDriver.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query implements the dialect.ExecQuerier interface.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.count(ctx, &tx.driver.stats.TotalQueries, query, args, func() error {
		return tx.Tx.Query(ctx, query, args, v)
	})
}

// Exec implements the dialect.ExecQuerier interface.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.count(ctx, &tx.driver.stats.TotalExecs, query, args, func() error {
		return tx.Tx.Exec(ctx, query, args, v)
	})
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ slog.LogValuer = StatsSnapshot{}
)
