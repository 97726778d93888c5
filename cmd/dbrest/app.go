package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/config"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/dialect/sql/inspect"
	"github.com/syssam/dbrest/dialect/sql/sqlgraph"
	"github.com/syssam/dbrest/service"

	// Drivers selectable by database.driver.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// app holds the wired components of one configuration.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	lazy      *sql.LazyDriver
	stats     *sql.StatsDriver
	cache     *dbrest.MemoryCache
	reflector *inspect.Reflector
	svc       *service.Service
}

// newLogger returns a logger writing to w in the configured format.
func newLogger(w io.Writer, c config.Log) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	name, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	src, err := cfg.Database.Source()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:   cfg,
		log:   log,
		lazy:  sql.Lazy(name, sql.OpenerFor(cfg.Database.Driver, src)),
		cache: dbrest.NewMemoryCache(),
	}
	a.stats = sql.NewStatsDriver(a.lazy, sql.WithSlowQueryLog(log))
	var drv dialect.Driver = a.stats
	if cfg.Debug {
		drv = dialect.Debug(drv, log)
	}
	mapping, err := inspect.ParseMapping(cfg.Mapping)
	if err != nil {
		return nil, err
	}
	a.reflector, err = inspect.NewReflector(drv,
		inspect.WithCache(a.cache, cfg.Cache.TTL),
		inspect.WithPrefix(cfg.Cache.Prefix),
		inspect.WithTables(cfg.Tables...),
		inspect.WithMapping(mapping),
		inspect.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	a.svc, err = service.New(drv, a.reflector,
		service.WithJoinLimits(sqlgraph.Limits{
			Depth:   cfg.Joins.Depth,
			Tables:  cfg.Joins.Tables,
			Records: cfg.Joins.Records,
		}),
		service.WithParallelJoins(cfg.Joins.Parallel),
		service.WithPageSize(cfg.Pagination.Size, cfg.Pagination.MaxSize),
		service.WithDefiner(inspect.NewDefiner(drv, a.reflector, inspect.WithDefinerLogger(log))),
		service.WithDebug(cfg.Debug),
		service.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// reload points the connection at the database of next and drops the
// cached schema. Settings other than the connection need a restart.
func (a *app) reload(ctx context.Context, next *config.Config) error {
	name, err := next.Dialect()
	if err != nil {
		return err
	}
	if name != a.lazy.Dialect() {
		return fmt.Errorf("dialect change from %s to %s requires a restart", a.lazy.Dialect(), name)
	}
	src, err := next.Database.Source()
	if err != nil {
		return err
	}
	if next.Database != a.cfg.Database {
		if err := a.lazy.Reconstruct(ctx, sql.OpenerFor(next.Database.Driver, src)); err != nil {
			return err
		}
		a.log.InfoContext(ctx, "database connection reconstructed", "driver", next.Database.Driver)
	}
	a.cfg.Database = next.Database
	return a.cache.Clear(ctx)
}

func (a *app) Close() error {
	return a.lazy.Close()
}
