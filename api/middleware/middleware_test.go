package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kiranahub/kiranahub-backend/pkg/logger"
)

func TestActorPopulatesContext(t *testing.T) {
	vendorID := uuid.New()
	supplierID := uuid.New()
	var gotVendor, gotSupplier uuid.UUID
	var vendorOK, supplierOK bool
	handler := Actor(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVendor, vendorOK = VendorIDFromContext(r.Context())
		gotSupplier, supplierOK = SupplierIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(VendorIDHeader, vendorID.String())
	req.Header.Set(SupplierIDHeader, supplierID.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, vendorOK)
	require.True(t, supplierOK)
	require.Equal(t, vendorID, gotVendor)
	require.Equal(t, supplierID, gotSupplier)
}

func TestActorLeavesMissingHeadersUnset(t *testing.T) {
	var vendorOK bool
	handler := Actor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, vendorOK = VendorIDFromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, vendorOK)
}

func TestActorRejectsMalformedHeader(t *testing.T) {
	called := false
	handler := Actor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(VendorIDHeader, "vendor-7")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.False(t, called)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, "req-1", resp.Header().Get(requestIDHeader))

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(resp.Header().Get(requestIDHeader))
	require.NoError(t, err)
}

func TestRequestIDReplacesUnusableValues(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, bad := range []string{strings.Repeat("a", maxRequestIDBytes+1), "has space", "tab\tid"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, bad)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		_, err := uuid.Parse(resp.Header().Get(requestIDHeader))
		require.NoError(t, err, bad)
	}
}

func TestRecovererReRaisesAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRecovererReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	handler := Recoverer(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Contains(t, buf.String(), "panic.recovered")
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Contains(t, buf.String(), "request.start")
	require.Contains(t, buf.String(), "request.complete")
	require.Contains(t, buf.String(), `"status":418`)
}

func TestLoggingRecordsRoutePatternAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/v1/group-orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/group-orders/"+uuid.NewString(), nil))

	require.Contains(t, buf.String(), `"route":"/api/v1/group-orders/{orderID}"`)
	require.Contains(t, buf.String(), `"bytes":5`)
	require.Contains(t, buf.String(), `"status":200`)
}
