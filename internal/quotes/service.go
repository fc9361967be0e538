// Package quotes serves price previews for single items and whole carts.
// Quotes never persist anything and never block on writers.
package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiranahub/kiranahub-backend/internal/catalog"
	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/metrics"
)

const (
	kindLine = "line"
	kindCart = "cart"
)

// LineRequest asks for the price of one item at a quantity.
type LineRequest struct {
	ItemID   uuid.UUID
	Quantity int
}

// CartRequest asks for the price of a participant cart.
type CartRequest struct {
	Lines []pricing.CartLine
}

// CartQuote is a priced cart with its participant-level summary.
type CartQuote struct {
	Lines   []pricing.LineQuote
	Summary pricing.Summary
	// MeetsMinimumOrder is false when any line is below its item's MOQ.
	MeetsMinimumOrder bool
	Degraded          bool
}

// Service prices quantities against the live catalog.
type Service interface {
	QuoteLine(ctx context.Context, req LineRequest) (pricing.LineQuote, error)
	QuoteCart(ctx context.Context, req CartRequest) (CartQuote, error)
}

type service struct {
	catalog catalog.Service
	metrics *metrics.QuoteMetrics
	logg    *logger.Logger
}

// NewService wires the quote service. metrics may be nil.
func NewService(catalogSvc catalog.Service, m *metrics.QuoteMetrics, logg *logger.Logger) (Service, error) {
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{catalog: catalogSvc, metrics: m, logg: logg}, nil
}

// QuoteLine validates quantity before touching the catalog so a bad quantity
// is reported as such even for unknown items.
func (s *service) QuoteLine(ctx context.Context, req LineRequest) (quote pricing.LineQuote, err error) {
	started := time.Now()
	defer func() { s.observe(kindLine, quote.Degraded, err, started) }()

	if req.Quantity < 1 {
		return pricing.LineQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": req.Quantity})
	}
	item, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return pricing.LineQuote{}, err
	}
	quote, err = pricing.PriceLine(item, req.Quantity)
	if err != nil {
		return pricing.LineQuote{}, err
	}
	if quote.Degraded {
		s.logg.Warn(s.logg.WithField(ctx, "item_id", item.ID.String()), "quote degraded: item has no applicable tier and zero base price")
	}
	return quote, nil
}

func (s *service) QuoteCart(ctx context.Context, req CartRequest) (quote CartQuote, err error) {
	started := time.Now()
	defer func() { s.observe(kindCart, quote.Degraded, err, started) }()

	if err := pricing.ValidateCart(req.Lines); err != nil {
		return CartQuote{}, err
	}
	items, err := s.catalog.GetItems(ctx, pricing.ItemIDs(req.Lines))
	if err != nil {
		return CartQuote{}, err
	}
	lines, summary, err := pricing.PriceCart(items, req.Lines)
	if err != nil {
		return CartQuote{}, err
	}

	quote = CartQuote{Lines: lines, Summary: summary, MeetsMinimumOrder: true}
	for _, line := range lines {
		if !line.MeetsMinimumOrder {
			quote.MeetsMinimumOrder = false
		}
		if line.Degraded {
			quote.Degraded = true
		}
	}
	return quote, nil
}

func (s *service) observe(kind string, degraded bool, err error, started time.Time) {
	outcome := metrics.OutcomeFor(err)
	if err == nil && degraded {
		outcome = metrics.OutcomeDegraded
	}
	s.metrics.Observe(kind, outcome, time.Since(started))
}
