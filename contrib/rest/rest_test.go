package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/dialect/sql/inspect"
	"github.com/syssam/dbrest/privacy"
	"github.com/syssam/dbrest/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var shopDDL = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY AUTOINCREMENT, name VARCHAR(100) NOT NULL UNIQUE)`,
	`CREATE TABLE orders (id INTEGER PRIMARY KEY AUTOINCREMENT, customer_id INTEGER REFERENCES customers(id), total DECIMAL(10,2) NOT NULL)`,
	`INSERT INTO customers (id, name) VALUES (1, 'ann'), (2, 'bob'), (3, 'cyd')`,
	`INSERT INTO orders (id, customer_id, total) VALUES
		(1, 1, 150.5), (2, 2, 200), (3, 3, 120), (4, 1, 101),
		(5, 2, 99), (6, 3, 300), (7, 1, 50)`,
}

func openShop(t *testing.T, svcOpts []service.Option, opts ...Option) *gin.Engine {
	t.Helper()
	ctx := context.Background()
	drv, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	for _, stmt := range shopDDL {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}
	r, err := inspect.NewReflector(drv)
	require.NoError(t, err)
	_, err = r.Tables(ctx)
	require.NoError(t, err)
	svc, err := service.New(drv, r, svcOpts...)
	require.NoError(t, err)
	return NewRouter(svc, opts...)
}

func do(t *testing.T, r http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type listBody struct {
	Records []map[string]any `json:"records"`
	Results int              `json:"results"`
}

func ids(recs []map[string]any) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i], _ = r["id"].(float64)
	}
	return out
}

func TestTables(t *testing.T) {
	r := openShop(t, nil)
	w := do(t, r, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusOK, w.Code)
	tables := decode[[]tableInfo](t, w)
	require.Len(t, tables, 2)
	for _, ti := range tables {
		if ti.Name == "orders" {
			assert.Equal(t, "table", ti.Kind)
			assert.Equal(t, []string{"id", "customer_id", "total"}, ti.Columns)
		}
	}
}

func TestList(t *testing.T) {
	r := openShop(t, nil)

	w := do(t, r, http.MethodGet, "/records/orders?filter=total,gt,100&order=id,desc&include=id", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[listBody](t, w)
	assert.Equal(t, []float64{6, 4, 3, 2, 1}, ids(body.Records))
	assert.Equal(t, -1, body.Results)

	w = do(t, r, http.MethodGet, "/records/orders?page=2,3&order=id&include=id", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[listBody](t, w)
	assert.Equal(t, []float64{4, 5, 6}, ids(body.Records))
	assert.Equal(t, 7, body.Results)

	w = do(t, r, http.MethodGet, "/records/orders?filter=nope,eq,1", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "column_not_found", decode[ErrorResponse](t, w).Code)

	w = do(t, r, http.MethodGet, "/records/ghosts", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "table_not_found", decode[ErrorResponse](t, w).Code)
}

func TestRead(t *testing.T) {
	r := openShop(t, nil)

	w := do(t, r, http.MethodGet, "/records/orders/1?join=customers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"customer_id":{"id":1,"name":"ann"},"total":"150.50"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/records/orders/2,1?include=id", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":2},{"id":1}]`, w.Body.String())

	w = do(t, r, http.MethodGet, "/records/orders/99", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "record_not_found", decode[ErrorResponse](t, w).Code)
}

func TestWrite(t *testing.T) {
	r := openShop(t, nil)

	w := do(t, r, http.MethodPost, "/records/customers", `{"name":"dee"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `4`, w.Body.String())

	w = do(t, r, http.MethodPost, "/records/customers", `{"name":"dee"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_key", decode[ErrorResponse](t, w).Code)

	w = do(t, r, http.MethodPost, "/records/customers", `[{"name":"eve"},{"name":"fay"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[5,6]`, w.Body.String())

	w = do(t, r, http.MethodPut, "/records/customers/4", `{"id":40,"name":"dana"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `1`, w.Body.String())
	w = do(t, r, http.MethodGet, "/records/customers/4", "")
	assert.JSONEq(t, `{"id":4,"name":"dana"}`, w.Body.String())

	w = do(t, r, http.MethodPatch, "/records/orders/7", `{"total":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/records/orders/7?include=total", "")
	assert.JSONEq(t, `{"total":"55.00"}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/records/orders/2,3", `{"customer_id":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[1,1]`, w.Body.String())

	w = do(t, r, http.MethodPut, "/records/orders/2,3", `[{"total":1}]`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "argument_count_mismatch", decode[ErrorResponse](t, w).Code)

	w = do(t, r, http.MethodDelete, "/records/orders/2,3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[1,1]`, w.Body.String())

	w = do(t, r, http.MethodDelete, "/records/orders/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `0`, w.Body.String())

	w = do(t, r, http.MethodPost, "/records/orders", `{`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malformed_body", decode[ErrorResponse](t, w).Code)
	w = do(t, r, http.MethodPost, "/records/orders", `[1]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewerPolicy(t *testing.T) {
	policy := privacy.Tables{
		"orders": {
			Query:    privacy.QueryPolicy{privacy.OwnerFilter("customer_id")},
			Mutation: privacy.MutationPolicy{privacy.DenyMutationOperationRule(privacy.OpDelete)},
		},
	}
	viewer := WithViewer(func(c *gin.Context) privacy.Viewer {
		if id := c.GetHeader("X-User"); id != "" {
			return &privacy.SimpleViewer{UserID: id}
		}
		return nil
	})
	r := openShop(t, []service.Option{service.WithPolicy(policy)}, viewer)

	w := do(t, r, http.MethodGet, "/records/orders?include=id&order=id", "", "X-User", "2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{2, 5}, ids(decode[listBody](t, w).Records))

	w = do(t, r, http.MethodGet, "/records/orders", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodDelete, "/records/orders/2", "", "X-User", "2")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode[ErrorResponse](t, w).Code)
}

func TestRequestID(t *testing.T) {
	r := openShop(t, nil)
	w := do(t, r, http.MethodGet, "/tables", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(t, r, http.MethodGet, "/tables", "", RequestIDHeader, "req-1")
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	preflight := []string{"Origin", "https://a.example", "Access-Control-Request-Method", http.MethodGet}

	r := openShop(t, nil)
	w := do(t, r, http.MethodOptions, "/records/orders", "", preflight...)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	r = openShop(t, nil, WithOrigins("https://b.example"))
	w = do(t, r, http.MethodOptions, "/records/orders", "", preflight...)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{dbrest.NewTableNotFoundError("t"), http.StatusNotFound, "table_not_found"},
		{dbrest.NewColumnNotFoundError("t", "c"), http.StatusNotFound, "column_not_found"},
		{dbrest.NewRecordNotFoundError("t", 1), http.StatusNotFound, "record_not_found"},
		{dbrest.NewArgumentCountMismatchError(2, 1), http.StatusUnprocessableEntity, "argument_count_mismatch"},
		{dbrest.NewDuplicateKeyError("t", errors.New("dup")), http.StatusConflict, "duplicate_key"},
		{dbrest.NewDataIntegrityError("t", errors.New("fk")), http.StatusConflict, "data_integrity_violation"},
		{dbrest.NewUnsupportedOperationError("create", "v"), http.StatusMethodNotAllowed, "unsupported_operation"},
		{privacy.Denyf("nope"), http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: eof", errBody), http.StatusBadRequest, "malformed_body"},
		{dbrest.NewDatabaseError("list", false, errors.New("boom")), http.StatusInternalServerError, "database_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
