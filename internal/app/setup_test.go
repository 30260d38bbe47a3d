package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/config"
	pkgconfig "github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/3":
			_ = json.NewEncoder(w).Encode(cart.Product{ID: 3, Title: "Cotton Jacket", Price: 55.99, Category: "men's clothing"})
		case "/products/categories":
			_, _ = w.Write([]byte(`["electronics","jewelery"]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDependencies(t *testing.T) *Dependencies {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv, closeKV, err := OpenStorage(context.Background(), pkgconfig.StorageConfig{Driver: pkgconfig.StorageMemory, Namespace: "test"}, logger)
	require.NoError(t, err)
	t.Cleanup(closeKV)

	var catalogCfg config.CatalogConfig
	catalogCfg.BaseURL = newCatalogServer(t).URL
	catalogCfg.Timeout = 2 * time.Second
	catalogCfg.Cache.Retention = time.Minute
	catalogCfg.CircuitBreaker = pkgconfig.CircuitBreakerConfig{ConsecutiveFailures: 3, ErrorRatePercent: 50, MaxRequests: 1, OpenTimeout: time.Minute}
	return SetupDependencies(context.Background(), kv, catalogCfg, logger)
}

func Test_SetupHttpHandler_Routes(t *testing.T) {
	// given
	deps := newTestDependencies(t)
	deps.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	deps.MetricsPath = "/metrics"
	handler := SetupHttpHandler(deps)

	testCases := []struct {
		name         string
		method       string
		path         string
		body         string
		expectedCode int
		expectedBody string
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK, `{"status":"ok"}`},
		{"empty cart", http.MethodGet, "/api/v1/cart", "", http.StatusOK, `{"items":[],"totalItems":0,"totalPrice":0}`},
		{"categories", http.MethodGet, "/api/v1/categories", "", http.StatusOK, `["electronics","jewelery"]`},
		{"unknown product", http.MethodGet, "/api/v1/products/9", "", http.StatusNotFound, `{"error":"Product with ID 9 not found"}`},
		{"unknown route", http.MethodGet, "/api/v1/orders", "", http.StatusNotFound, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.NotEmpty(t, rr.Header().Get(web.RequestIDHeader))
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
		})
	}

	t.Run("metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "# metrics", rr.Body.String())
	})
}

func Test_SetupHttpHandler_AddThroughCatalog(t *testing.T) {
	// given
	deps := newTestDependencies(t)
	handler := SetupHttpHandler(deps)

	// when
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":3,"quantity":2}`)))

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	var st cart.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, 2, st.TotalItems)
	assert.InDelta(t, 111.98, st.TotalPrice, 1e-9)
	assert.Equal(t, "Cotton Jacket", st.Items[0].Title)
	assert.Equal(t, st, deps.CartService.Get(context.Background()))
}

func Test_SetupHttpHandler_QuantityBounds(t *testing.T) {
	// given
	deps := newTestDependencies(t)
	handler := SetupHttpHandler(deps)
	do := func(method, path, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr
	}
	require.Equal(t, http.StatusOK, do(http.MethodPost, "/api/v1/cart/items", `{"productId":3,"quantity":999}`).Code)

	// when
	setRR := do(http.MethodPut, "/api/v1/cart/items/3/quantity", `{"quantity":9223372036854775807}`)
	addRR := do(http.MethodPost, "/api/v1/cart/items", `{"productId":3}`)

	// then
	assert.Equal(t, http.StatusBadRequest, setRR.Code)
	require.Equal(t, http.StatusOK, addRR.Code)
	var st cart.State
	require.NoError(t, json.Unmarshal(addRR.Body.Bytes(), &st))
	assert.Equal(t, cart.MaxQuantity, st.Items[0].Quantity)
	assert.Equal(t, cart.MaxQuantity, st.TotalItems)
	assert.Positive(t, st.TotalPrice)
}

func Test_SetupHttpServer_ShutdownEndsEventStreams(t *testing.T) {
	// given
	deps := newTestDependencies(t)
	srv := SetupHttpServer(deps, &config.Config{}, "storefront-test")
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/api/v1/cart/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	event, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: cart\n", event)

	// when
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = srv.Shutdown(ctx)

	// then
	assert.NoError(t, err, "shutdown must not wait for connected event clients")
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}

func Test_OpenStorage_UnknownDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, _, err := OpenStorage(context.Background(), pkgconfig.StorageConfig{Driver: "floppy", Namespace: "x"}, logger)

	assert.ErrorContains(t, err, "unknown storage driver")
}

func Test_OpenStorage_SQLite(t *testing.T) {
	// given
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var cfg pkgconfig.StorageConfig
	cfg.Driver = pkgconfig.StorageSQLite
	cfg.Namespace = "test"
	cfg.SQLite.Path = t.TempDir() + "/storefront.db"

	// when
	kv, closeKV, err := OpenStorage(ctx, cfg, logger)
	require.NoError(t, err)
	defer closeKV()

	// then
	require.NoError(t, kv.Set(ctx, "cart", []byte(`{}`)))
	got, err := kv.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))
}
