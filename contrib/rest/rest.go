package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/syssam/dbrest/privacy"
	"github.com/syssam/dbrest/service"
)

// Handler serves the records of a Service over HTTP.
type Handler struct {
	svc     *service.Service
	log     *slog.Logger
	origins []string
	viewer  func(*gin.Context) privacy.Viewer
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

// WithOrigins restricts cross-origin requests to the given origins.
// Without origins every origin is allowed.
func WithOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.origins = origins
	}
}

// WithViewer resolves the viewer of a request. Privacy rules of the
// service see the returned viewer.
func WithViewer(fn func(*gin.Context) privacy.Viewer) Option {
	return func(h *Handler) {
		h.viewer = fn
	}
}

// New returns a Handler for svc.
func New(svc *service.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter returns an engine with the middleware chain and the record
// routes of a Handler for svc.
func NewRouter(svc *service.Service, opts ...Option) *gin.Engine {
	h := New(svc, opts...)
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), h.logRequests, cors.New(h.corsConfig()))
	if h.viewer != nil {
		r.Use(h.attachViewer)
	}
	h.Register(r)
	return r
}

// Register adds the routes:
//
//	GET    /tables
//	GET    /records/:table
//	POST   /records/:table
//	GET    /records/:table/:id
//	PUT    /records/:table/:id
//	PATCH  /records/:table/:id
//	DELETE /records/:table/:id
//
// A comma separated id addresses several records at once.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/tables", h.tables)
	g := r.Group("/records")
	g.GET("/:table", h.list)
	g.POST("/:table", h.create)
	g.GET("/:table/:id", h.read)
	g.PUT("/:table/:id", h.update)
	g.PATCH("/:table/:id", h.increment)
	g.DELETE("/:table/:id", h.delete)
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(h.origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", RequestIDHeader)
	cfg.ExposeHeaders = []string{RequestIDHeader}
	return cfg
}

type tableInfo struct {
	Name    string   `json:"name"`
	Kind    string   `json:"type"`
	Columns []string `json:"columns"`
}

func (h *Handler) tables(c *gin.Context) {
	ts, err := h.svc.Tables(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]tableInfo, 0, len(ts))
	for _, t := range ts {
		out = append(out, tableInfo{Name: t.Name, Kind: string(t.Kind), Columns: t.ColumnNames()})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) list(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), c.Param("table"), service.ParamsFromValues(c.Request.URL.Query()))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) read(c *gin.Context) {
	ctx, table := c.Request.Context(), c.Param("table")
	p := service.ParamsFromValues(c.Request.URL.Query())
	ids, many := splitIDs(c.Param("id"))
	if !many {
		rec, err := h.svc.Read(ctx, table, ids[0], p)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
		return
	}
	recs, err := h.svc.ReadMany(ctx, table, ids, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *Handler) create(c *gin.Context) {
	ctx, table := c.Request.Context(), c.Param("table")
	recs, many, err := decodeRecords(c.Request.Body)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !many {
		id, err := h.svc.Create(ctx, table, recs[0])
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, id)
		return
	}
	ids, err := h.svc.CreateMany(ctx, table, recs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (h *Handler) update(c *gin.Context) {
	h.write(c, h.svc.Update, h.svc.UpdateMany)
}

func (h *Handler) increment(c *gin.Context) {
	h.write(c, h.svc.Increment, h.svc.IncrementMany)
}

type (
	writeOne  func(ctx context.Context, table string, id any, record service.Record) (int64, error)
	writeMany func(ctx context.Context, table string, ids []any, records []service.Record) ([]int64, error)
)

// write runs an update or increment. An object body applies to every
// addressed record, an array body pairs records with ids.
func (h *Handler) write(c *gin.Context, one writeOne, many writeMany) {
	ctx, table := c.Request.Context(), c.Param("table")
	ids, multi := splitIDs(c.Param("id"))
	recs, array, err := decodeRecords(c.Request.Body)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !multi && !array {
		n, err := one(ctx, table, ids[0], recs[0])
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, n)
		return
	}
	if !array {
		for len(recs) < len(ids) {
			recs = append(recs, recs[0])
		}
	}
	ns, err := many(ctx, table, ids, recs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

func (h *Handler) delete(c *gin.Context) {
	ctx, table := c.Request.Context(), c.Param("table")
	ids, many := splitIDs(c.Param("id"))
	if !many {
		n, err := h.svc.Delete(ctx, table, ids[0])
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, n)
		return
	}
	ns, err := h.svc.DeleteMany(ctx, table, ids)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

func (h *Handler) attachViewer(c *gin.Context) {
	if v := h.viewer(c); v != nil {
		c.Request = c.Request.WithContext(privacy.WithViewer(c.Request.Context(), v))
	}
	c.Next()
}

// splitIDs splits a comma separated id path segment.
func splitIDs(s string) ([]any, bool) {
	parts := strings.Split(s, ",")
	ids := make([]any, len(parts))
	for i, p := range parts {
		ids[i] = p
	}
	return ids, len(parts) > 1
}

// errBody is returned for malformed request bodies.
var errBody = errors.New("rest: malformed request body")

// decodeRecords reads an object or an array of objects. Integral numbers
// decode as int64.
func decodeRecords(r io.Reader) ([]service.Record, bool, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false, fmt.Errorf("%w: %v", errBody, err)
	}
	switch v := v.(type) {
	case map[string]any:
		return []service.Record{normalize(v)}, false, nil
	case []any:
		recs := make([]service.Record, 0, len(v))
		for i, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false, fmt.Errorf("%w: element %d is not an object", errBody, i)
			}
			recs = append(recs, normalize(m))
		}
		return recs, true, nil
	default:
		return nil, false, fmt.Errorf("%w: expected an object or an array", errBody)
	}
}

func normalize(m map[string]any) service.Record {
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			m[k] = i
		} else if f, err := n.Float64(); err == nil {
			m[k] = f
		} else {
			m[k] = n.String()
		}
	}
	return m
}
