package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranahub/kiranahub-backend/api/responses"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
)

// Headers set by the upstream auth gateway.
const (
	VendorIDHeader   = "X-Vendor-Id"
	SupplierIDHeader = "X-Supplier-Id"
)

type contextKey string

const (
	ctxVendorID   contextKey = "vendor_id"
	ctxSupplierID contextKey = "supplier_id"
)

// Actor copies the gateway identity headers into the request context.
// Malformed identifiers are rejected; absent ones are left unset so that
// each handler decides which actor it requires.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			vendorID, err := headerUUID(r, VendorIDHeader)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			supplierID, err := headerUUID(r, SupplierIDHeader)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			if vendorID != nil {
				ctx = WithVendorID(ctx, *vendorID)
				if logg != nil {
					ctx = logg.WithVendorID(ctx, vendorID.String())
				}
			}
			if supplierID != nil {
				ctx = WithSupplierID(ctx, *supplierID)
				if logg != nil {
					ctx = logg.WithField(ctx, "supplier_id", supplierID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerUUID(r *http.Request, header string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(header))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor header").
			WithDetails(map[string]any{"header": header})
	}
	return &id, nil
}

func VendorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxVendorID).(uuid.UUID)
	return v, ok
}

func SupplierIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxSupplierID).(uuid.UUID)
	return v, ok
}

// WithVendorID injects the acting vendor into the context.
func WithVendorID(ctx context.Context, vendorID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxVendorID, vendorID)
}

// WithSupplierID injects the acting supplier into the context.
func WithSupplierID(ctx context.Context, supplierID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSupplierID, supplierID)
}
