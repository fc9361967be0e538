package grouporders

import (
	"github.com/google/uuid"

	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	"github.com/kiranahub/kiranahub-backend/pkg/checkout"
	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
)

// lineRows freezes priced lines into persistence rows.
func lineRows(lines []pricing.LineQuote) []models.ParticipationLine {
	rows := make([]models.ParticipationLine, 0, len(lines))
	for i, line := range lines {
		row := models.ParticipationLine{
			CatalogItemID:    line.ItemID,
			Position:         i,
			Quantity:         line.Quantity,
			BasePrice:        line.BasePrice,
			UnitPriceApplied: line.UnitPrice,
			LineTotal:        line.LineTotal,
			BaseTotal:        line.BaseTotal,
		}
		if line.AppliedTier != nil {
			minQty := line.AppliedTier.MinimumQuantity
			unitPrice := line.AppliedTier.UnitPrice
			row.AppliedTierMinQty = &minQty
			row.AppliedTierUnitPrice = &unitPrice
		}
		rows = append(rows, row)
	}
	return rows
}

// lineQuote restores the calculator output that was frozen at submission.
// Lines were admitted, so they meet the minimum order quantity.
func lineQuote(row models.ParticipationLine) pricing.LineQuote {
	savings := row.BaseTotal.Sub(row.LineTotal)
	quote := pricing.LineQuote{
		ItemID:            row.CatalogItemID,
		Quantity:          row.Quantity,
		BasePrice:         row.BasePrice,
		UnitPrice:         row.UnitPriceApplied,
		LineTotal:         row.LineTotal,
		BaseTotal:         row.BaseTotal,
		SavingsAmount:     savings,
		SavingsPercent:    pricing.SavingsPercent(savings, row.BaseTotal),
		MeetsMinimumOrder: true,
	}
	if row.AppliedTierMinQty != nil && row.AppliedTierUnitPrice != nil {
		quote.AppliedTier = &pricing.PriceTier{
			MinimumQuantity: *row.AppliedTierMinQty,
			UnitPrice:       *row.AppliedTierUnitPrice,
		}
	}
	quote.Degraded = quote.AppliedTier == nil && row.BasePrice.IsZero()
	return quote
}

func participationView(row models.OrderParticipation) ParticipationView {
	lines := make([]pricing.LineQuote, 0, len(row.Lines))
	for _, line := range row.Lines {
		lines = append(lines, lineQuote(line))
	}
	return ParticipationView{
		ID:          row.ID,
		VendorID:    row.VendorID,
		SubmittedAt: row.SubmittedAt,
		Lines:       lines,
		Summary:     pricing.SummarizeLines(lines),
	}
}

func orderView(order models.GroupOrder, participations []models.OrderParticipation) *OrderView {
	view := &OrderView{
		ID:                order.ID,
		SupplierID:        order.SupplierID,
		ClusterID:         order.ClusterID,
		CreatedByVendorID: order.CreatedByVendorID,
		Status:            order.Status,
		Version:           order.Version,
		Notes:             order.Notes,
		StatusChangedAt:   order.StatusChangedAt,
		CreatedAt:         order.CreatedAt,
		Participations:    make([]ParticipationView, 0, len(participations)),
	}
	summaries := make([]pricing.Summary, 0, len(participations))
	for _, row := range participations {
		p := participationView(row)
		view.Participations = append(view.Participations, p)
		summaries = append(summaries, p.Summary)
	}
	view.Summary = pricing.SummarizeParticipations(summaries)
	return view
}

func admissionLines(items map[uuid.UUID]pricing.CatalogItem, lines []pricing.CartLine) []checkout.AdmissionLine {
	out := make([]checkout.AdmissionLine, 0, len(lines))
	for _, line := range lines {
		item := items[line.ItemID]
		out = append(out, checkout.AdmissionLine{
			ItemID:               line.ItemID,
			SupplierID:           item.SupplierID,
			MinimumOrderQuantity: item.MinimumOrderQuantity,
			Quantity:             line.Quantity,
		})
	}
	return out
}
