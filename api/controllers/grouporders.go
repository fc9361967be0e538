package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranahub/kiranahub-backend/api/middleware"
	"github.com/kiranahub/kiranahub-backend/api/responses"
	"github.com/kiranahub/kiranahub-backend/api/validators"
	grouporderssvc "github.com/kiranahub/kiranahub-backend/internal/grouporders"
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
)

type createGroupOrderRequest struct {
	SupplierID uuid.UUID  `json:"supplierId" validate:"required"`
	ClusterID  *uuid.UUID `json:"clusterId"`
	Notes      *string    `json:"notes" validate:"omitempty,max=500"`
}

type submitParticipationRequest struct {
	Lines []cartLinePayload `json:"lines" validate:"required,min=1,dive"`
}

type transitionStatusRequest struct {
	Status string `json:"status" validate:"required,group_status"`
}

// GroupOrderCreate opens a pending order on behalf of the acting vendor.
func GroupOrderCreate(svc grouporderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		vendorID, ok := middleware.VendorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing"))
			return
		}

		var payload createGroupOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateOrder(r.Context(), grouporderssvc.CreateOrderInput{
			SupplierID: payload.SupplierID,
			VendorID:   vendorID,
			ClusterID:  payload.ClusterID,
			Notes:      payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newGroupOrderResponse(view))
	}
}

// GroupOrderDetail returns the order with its participations and savings.
func GroupOrderDetail(svc grouporderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupOrderResponse(view))
	}
}

// GroupOrderList pages through orders, optionally filtered by supplier,
// cluster and status.
func GroupOrderList(svc grouporderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		query := r.URL.Query()
		var input grouporderssvc.ListOrdersInput
		var err error

		if input.SupplierID, err = validators.ParseOptionalUUIDQuery(r, "supplierId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.ClusterID, err = validators.ParseOptionalUUIDQuery(r, "clusterId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status, err := enums.ParseGroupOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown status").
					WithDetails(map[string]any{"status": raw}))
				return
			}
			input.Status = &status
		}
		if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			input.Limit = value
		}
		input.Cursor = strings.TrimSpace(query.Get("cursor"))

		page, err := svc.ListOrders(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupOrderPageResponse(page))
	}
}

// GroupOrderParticipationPut joins the order or replaces the vendor's cart.
func GroupOrderParticipationPut(svc grouporderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		orderID, vendorID, err := participationTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitParticipationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		result, err := svc.SubmitParticipation(ctx, grouporderssvc.SubmitParticipationInput{
			OrderID:  orderID,
			VendorID: vendorID,
			Lines:    toCartLines(payload.Lines),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, submitParticipationResponse{
			Change: string(result.Change),
			Order:  newGroupOrderResponse(result.Order),
		})
	}
}

// GroupOrderParticipationDelete withdraws the vendor from a pending order.
func GroupOrderParticipationDelete(svc grouporderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		orderID, vendorID, err := participationTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		view, err := svc.RemoveParticipation(ctx, grouporderssvc.RemoveParticipationInput{
			OrderID:  orderID,
			VendorID: vendorID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupOrderResponse(view))
	}
}

// GroupOrderTransitionStatus applies a supplier-driven status change.
func GroupOrderTransitionStatus(svc grouporderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		supplierID, ok := middleware.SupplierIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "supplier context missing"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseGroupOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown status").
				WithDetails(map[string]any{"status": payload.Status}))
			return
		}

		view, err := svc.TransitionStatus(r.Context(), grouporderssvc.TransitionInput{
			OrderID:    orderID,
			SupplierID: supplierID,
			Target:     target,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupOrderResponse(view))
	}
}

// participationTarget resolves the order and vendor from the path. A vendor
// may only change its own participation.
func participationTarget(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	orderID, err := validators.ParseUUIDParam(r, "orderID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	vendorID, err := validators.ParseUUIDParam(r, "vendorID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	actor, ok := middleware.VendorIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	if actor != vendorID {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendors may only change their own participation")
	}
	return orderID, vendorID, nil
}
