package quotes

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranahub/kiranahub-backend/internal/catalog"
	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	"github.com/kiranahub/kiranahub-backend/pkg/db/dbtest"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/metrics"
)

type fixture struct {
	svc      Service
	reg      *prometheus.Registry
	rice     uuid.UUID
	free     uuid.UUID
	supplier uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	supplier := uuid.New()
	rice := dbtest.SeedItem(t, conn, supplier, "100", 5,
		dbtest.TierSeed{MinQty: 10, UnitPrice: "90"},
		dbtest.TierSeed{MinQty: 25, UnitPrice: "80"},
		dbtest.TierSeed{MinQty: 50, UnitPrice: "70"},
	)
	free := dbtest.SeedItem(t, conn, supplier, "0", 1)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc, err := NewService(catalogSvc, metrics.NewQuoteMetrics(reg), logger.Nop())
	require.NoError(t, err)
	return fixture{svc: svc, reg: reg, rice: rice.ID, free: free.ID, supplier: supplier}
}

func TestQuoteLineAppliesDeepestTier(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.QuoteLine(context.Background(), LineRequest{ItemID: f.rice, Quantity: 30})
	require.NoError(t, err)
	require.NotNil(t, quote.AppliedTier)
	assert.Equal(t, 25, quote.AppliedTier.MinimumQuantity)
	assert.Equal(t, "80.00", pricing.FormatMoney(quote.UnitPrice))
	assert.Equal(t, "2400.00", pricing.FormatMoney(quote.LineTotal))
	assert.Equal(t, "3000.00", pricing.FormatMoney(quote.BaseTotal))
	assert.Equal(t, "600.00", pricing.FormatMoney(quote.SavingsAmount))
	assert.Equal(t, "20.0", pricing.FormatPercent(quote.SavingsPercent))
	assert.True(t, quote.MeetsMinimumOrder)

	assert.Equal(t, float64(1), quoteCount(t, f.reg, "line", "ok"))
}

func TestQuoteLineBelowMinimumOrderStillPrices(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.QuoteLine(context.Background(), LineRequest{ItemID: f.rice, Quantity: 2})
	require.NoError(t, err)
	assert.Nil(t, quote.AppliedTier)
	assert.Equal(t, "200.00", pricing.FormatMoney(quote.LineTotal))
	assert.False(t, quote.MeetsMinimumOrder)
}

func TestQuoteLineErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.QuoteLine(context.Background(), LineRequest{ItemID: f.rice, Quantity: 0})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.QuoteLine(context.Background(), LineRequest{ItemID: uuid.New(), Quantity: 0})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.QuoteLine(context.Background(), LineRequest{ItemID: uuid.New(), Quantity: 3})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	assert.Equal(t, float64(2), quoteCount(t, f.reg, "line", "invalid"))
	assert.Equal(t, float64(1), quoteCount(t, f.reg, "line", "not_found"))
}

func TestQuoteLineDegradedIsNotAnError(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.QuoteLine(context.Background(), LineRequest{ItemID: f.free, Quantity: 4})
	require.NoError(t, err)
	assert.True(t, quote.Degraded)
	assert.True(t, quote.LineTotal.IsZero())
	assert.True(t, quote.SavingsPercent.IsZero())
	assert.Equal(t, float64(1), quoteCount(t, f.reg, "line", "degraded"))
}

func TestQuoteCart(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.QuoteCart(context.Background(), CartRequest{Lines: []pricing.CartLine{
		{ItemID: f.rice, Quantity: 25},
		{ItemID: f.free, Quantity: 1},
	}})
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, "2000.00", pricing.FormatMoney(quote.Summary.TotalAmount))
	assert.Equal(t, "2500.00", pricing.FormatMoney(quote.Summary.BaseTotal))
	assert.Equal(t, "20.0", pricing.FormatPercent(quote.Summary.SavingsPercent))
	assert.True(t, quote.MeetsMinimumOrder)
	assert.True(t, quote.Degraded)
}

func TestQuoteCartRejectsBadCarts(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.QuoteCart(context.Background(), CartRequest{})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.QuoteCart(context.Background(), CartRequest{Lines: []pricing.CartLine{
		{ItemID: f.rice, Quantity: 10},
		{ItemID: f.rice, Quantity: 5},
	}})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	missing := uuid.New()
	_, err = f.svc.QuoteCart(context.Background(), CartRequest{Lines: []pricing.CartLine{
		{ItemID: f.rice, Quantity: 10},
		{ItemID: missing, Quantity: 5},
	}})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	require.Equal(t, map[string]any{"item_id": missing.String()}, typed.Details())
}

func TestQuoteCartFlagsMinimumOrder(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.QuoteCart(context.Background(), CartRequest{Lines: []pricing.CartLine{{ItemID: f.rice, Quantity: 4}}})
	require.NoError(t, err)
	assert.False(t, quote.MeetsMinimumOrder)
	assert.False(t, quote.Lines[0].MeetsMinimumOrder)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(nil, nil, logger.Nop())
	require.Error(t, err)
}

func quoteCount(t *testing.T, reg *prometheus.Registry, kind, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "pricing_quotes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["kind"] == kind && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
