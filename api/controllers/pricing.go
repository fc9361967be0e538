package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranahub/kiranahub-backend/api/responses"
	"github.com/kiranahub/kiranahub-backend/api/validators"
	"github.com/kiranahub/kiranahub-backend/internal/quotes"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
)

type quoteLineRequest struct {
	ItemID            uuid.UUID `json:"itemId" validate:"required"`
	RequestedQuantity int       `json:"requestedQuantity"`
}

type quoteCartRequest struct {
	ParticipantCart []cartLinePayload `json:"participantCart" validate:"required,min=1,dive"`
}

// PricingQuote prices one item at the requested quantity.
func PricingQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		var payload quoteLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.QuoteLine(r.Context(), quotes.LineRequest{
			ItemID:   payload.ItemID,
			Quantity: payload.RequestedQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newLineQuoteResponse(quote))
	}
}

// PricingCartQuote prices a participant cart without persisting it.
func PricingCartQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		var payload quoteCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.QuoteCart(r.Context(), quotes.CartRequest{Lines: toCartLines(payload.ParticipantCart)})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartQuoteResponse(quote))
	}
}
