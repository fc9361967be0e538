package controllers

import (
	"time"

	"github.com/google/uuid"

	grouporderssvc "github.com/kiranahub/kiranahub-backend/internal/grouporders"
	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	"github.com/kiranahub/kiranahub-backend/internal/quotes"
)

type cartLinePayload struct {
	ItemID   uuid.UUID `json:"itemId" validate:"required"`
	Quantity int       `json:"quantity"`
}

func toCartLines(payload []cartLinePayload) []pricing.CartLine {
	lines := make([]pricing.CartLine, 0, len(payload))
	for _, line := range payload {
		lines = append(lines, pricing.CartLine{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	return lines
}

type appliedTierResponse struct {
	MinimumQuantity int    `json:"minimumQuantity"`
	UnitPrice       string `json:"unitPrice"`
}

type lineQuoteResponse struct {
	ItemID            uuid.UUID            `json:"itemId"`
	RequestedQuantity int                  `json:"requestedQuantity"`
	BasePrice         string               `json:"basePrice"`
	UnitPrice         string               `json:"unitPrice"`
	LineTotal         string               `json:"lineTotal"`
	BaseTotal         string               `json:"baseTotal"`
	SavingsAmount     string               `json:"savingsAmount"`
	SavingsPercent    string               `json:"savingsPercent"`
	AppliedTier       *appliedTierResponse `json:"appliedTier"`
	MeetsMinimumOrder bool                 `json:"meetsMinimumOrder"`
	Degraded          bool                 `json:"degraded"`
}

func newLineQuoteResponse(line pricing.LineQuote) lineQuoteResponse {
	resp := lineQuoteResponse{
		ItemID:            line.ItemID,
		RequestedQuantity: line.Quantity,
		BasePrice:         pricing.FormatMoney(line.BasePrice),
		UnitPrice:         pricing.FormatMoney(line.UnitPrice),
		LineTotal:         pricing.FormatMoney(line.LineTotal),
		BaseTotal:         pricing.FormatMoney(line.BaseTotal),
		SavingsAmount:     pricing.FormatMoney(line.SavingsAmount),
		SavingsPercent:    pricing.FormatPercent(line.SavingsPercent),
		MeetsMinimumOrder: line.MeetsMinimumOrder,
		Degraded:          line.Degraded,
	}
	if line.AppliedTier != nil {
		resp.AppliedTier = &appliedTierResponse{
			MinimumQuantity: line.AppliedTier.MinimumQuantity,
			UnitPrice:       pricing.FormatMoney(line.AppliedTier.UnitPrice),
		}
	}
	return resp
}

func newLineQuoteResponses(lines []pricing.LineQuote) []lineQuoteResponse {
	out := make([]lineQuoteResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, newLineQuoteResponse(line))
	}
	return out
}

// summaryResponse is embedded wherever a participant or order total is reported.
type summaryResponse struct {
	TotalAmount    string `json:"totalAmount"`
	BaseTotal      string `json:"baseTotal"`
	SavingsAmount  string `json:"savingsAmount"`
	SavingsPercent string `json:"savingsPercent"`
}

func newSummaryResponse(summary pricing.Summary) summaryResponse {
	return summaryResponse{
		TotalAmount:    pricing.FormatMoney(summary.TotalAmount),
		BaseTotal:      pricing.FormatMoney(summary.BaseTotal),
		SavingsAmount:  pricing.FormatMoney(summary.SavingsAmount),
		SavingsPercent: pricing.FormatPercent(summary.SavingsPercent),
	}
}

type cartQuoteResponse struct {
	Lines []lineQuoteResponse `json:"lines"`
	summaryResponse
	MeetsMinimumOrder bool `json:"meetsMinimumOrder"`
	Degraded          bool `json:"degraded"`
}

func newCartQuoteResponse(quote quotes.CartQuote) cartQuoteResponse {
	return cartQuoteResponse{
		Lines:             newLineQuoteResponses(quote.Lines),
		summaryResponse:   newSummaryResponse(quote.Summary),
		MeetsMinimumOrder: quote.MeetsMinimumOrder,
		Degraded:          quote.Degraded,
	}
}

type participationResponse struct {
	ID          uuid.UUID           `json:"id"`
	VendorID    uuid.UUID           `json:"vendorId"`
	SubmittedAt time.Time           `json:"submittedAt"`
	Lines       []lineQuoteResponse `json:"lines"`
	summaryResponse
}

type groupOrderResponse struct {
	ID                uuid.UUID               `json:"id"`
	SupplierID        uuid.UUID               `json:"supplierId"`
	ClusterID         *uuid.UUID              `json:"clusterId"`
	CreatedByVendorID uuid.UUID               `json:"createdByVendorId"`
	Status            string                  `json:"status"`
	Version           int                     `json:"version"`
	Notes             *string                 `json:"notes,omitempty"`
	StatusChangedAt   *time.Time              `json:"statusChangedAt"`
	CreatedAt         time.Time               `json:"createdAt"`
	ParticipantCount  int                     `json:"participantCount"`
	Participations    []participationResponse `json:"participations"`
	summaryResponse
}

func newGroupOrderResponse(view *grouporderssvc.OrderView) groupOrderResponse {
	participations := make([]participationResponse, 0, len(view.Participations))
	for _, p := range view.Participations {
		participations = append(participations, participationResponse{
			ID:              p.ID,
			VendorID:        p.VendorID,
			SubmittedAt:     p.SubmittedAt,
			Lines:           newLineQuoteResponses(p.Lines),
			summaryResponse: newSummaryResponse(p.Summary),
		})
	}
	return groupOrderResponse{
		ID:                view.ID,
		SupplierID:        view.SupplierID,
		ClusterID:         view.ClusterID,
		CreatedByVendorID: view.CreatedByVendorID,
		Status:            view.Status.String(),
		Version:           view.Version,
		Notes:             view.Notes,
		StatusChangedAt:   view.StatusChangedAt,
		CreatedAt:         view.CreatedAt,
		ParticipantCount:  len(participations),
		Participations:    participations,
		summaryResponse:   newSummaryResponse(view.Summary),
	}
}

type groupOrderPageResponse struct {
	Orders     []groupOrderResponse `json:"orders"`
	NextCursor *string              `json:"nextCursor"`
}

func newGroupOrderPageResponse(page *grouporderssvc.OrderPage) groupOrderPageResponse {
	resp := groupOrderPageResponse{Orders: make([]groupOrderResponse, 0, len(page.Orders))}
	for _, view := range page.Orders {
		resp.Orders = append(resp.Orders, newGroupOrderResponse(view))
	}
	if page.NextCursor != "" {
		cursor := page.NextCursor
		resp.NextCursor = &cursor
	}
	return resp
}

type submitParticipationResponse struct {
	Change string             `json:"change"`
	Order  groupOrderResponse `json:"order"`
}
