package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahub/kiranahub-backend/pkg/enums"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func riceItem(t *testing.T) CatalogItem {
	t.Helper()
	table, err := NewTierTable(dec("100"), []PriceTier{
		{MinimumQuantity: 50, UnitPrice: dec("70")},
		{MinimumQuantity: 10, UnitPrice: dec("90")},
		{MinimumQuantity: 25, UnitPrice: dec("80")},
	})
	if err != nil {
		t.Fatalf("build tier table: %v", err)
	}
	item, err := NewCatalogItem(uuid.New(), uuid.New(), "Basmati rice", enums.CatalogUnitKilogram, 5, table)
	if err != nil {
		t.Fatalf("build catalog item: %v", err)
	}
	return item
}

func TestResolvePriceSelectsDeepestQualifyingTier(t *testing.T) {
	t.Parallel()

	item := riceItem(t)
	cases := []struct {
		qty      int
		want     string
		wantTier int
	}{
		{qty: 1, want: "100"},
		{qty: 5, want: "100"},
		{qty: 9, want: "100"},
		{qty: 10, want: "90", wantTier: 10},
		{qty: 24, want: "90", wantTier: 10},
		{qty: 25, want: "80", wantTier: 25},
		{qty: 30, want: "80", wantTier: 25},
		{qty: 50, want: "70", wantTier: 50},
		{qty: 5000, want: "70", wantTier: 50},
	}

	for _, tc := range cases {
		res, err := ResolvePrice(item.Pricing, tc.qty)
		if err != nil {
			t.Fatalf("qty %d: unexpected error %v", tc.qty, err)
		}
		if !res.UnitPrice.Equal(dec(tc.want)) {
			t.Fatalf("qty %d: expected unit price %s, got %s", tc.qty, tc.want, res.UnitPrice)
		}
		if tc.wantTier == 0 {
			if res.AppliedTier != nil {
				t.Fatalf("qty %d: expected base price, got tier %+v", tc.qty, res.AppliedTier)
			}
			continue
		}
		if res.AppliedTier == nil || res.AppliedTier.MinimumQuantity != tc.wantTier {
			t.Fatalf("qty %d: expected tier %d, got %+v", tc.qty, tc.wantTier, res.AppliedTier)
		}
	}
}

func TestResolvePriceTieBreaksOnLowestUnitPrice(t *testing.T) {
	t.Parallel()

	orders := [][]PriceTier{
		{{MinimumQuantity: 20, UnitPrice: dec("85")}, {MinimumQuantity: 20, UnitPrice: dec("82")}},
		{{MinimumQuantity: 20, UnitPrice: dec("82")}, {MinimumQuantity: 20, UnitPrice: dec("85")}},
	}
	for _, tiers := range orders {
		table, err := NewTierTable(dec("100"), tiers)
		if err != nil {
			t.Fatalf("build table: %v", err)
		}
		res, err := ResolvePrice(table, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.UnitPrice.Equal(dec("82")) || res.AppliedTier == nil || !res.AppliedTier.UnitPrice.Equal(dec("82")) {
			t.Fatalf("expected the 82 tier to win the tie, got %+v", res)
		}
	}
}

func TestResolvePriceIsDeterministic(t *testing.T) {
	t.Parallel()

	item := riceItem(t)
	first, err := ResolvePrice(item.Pricing, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := ResolvePrice(item.Pricing, 30)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !again.UnitPrice.Equal(first.UnitPrice) || again.AppliedTier.MinimumQuantity != first.AppliedTier.MinimumQuantity {
			t.Fatalf("resolution changed between calls: %+v vs %+v", first, again)
		}
	}
}

func TestResolvePriceQualificationIsMonotonic(t *testing.T) {
	t.Parallel()

	table, err := NewTierTable(dec("50"), []PriceTier{
		{MinimumQuantity: 3, UnitPrice: dec("49")},
		{MinimumQuantity: 7, UnitPrice: dec("55")},
		{MinimumQuantity: 7, UnitPrice: dec("45")},
		{MinimumQuantity: 12, UnitPrice: dec("60")},
		{MinimumQuantity: 40, UnitPrice: dec("30")},
	})
	if err != nil {
		t.Fatalf("build table: %v", err)
	}

	previous := 0
	for qty := 1; qty <= 60; qty++ {
		res, err := ResolvePrice(table, qty)
		if err != nil {
			t.Fatalf("qty %d: %v", qty, err)
		}
		current := 0
		if res.AppliedTier != nil {
			current = res.AppliedTier.MinimumQuantity
		}
		if current < previous {
			t.Fatalf("qty %d selected tier %d after tier %d", qty, current, previous)
		}
		previous = current
	}
}

func TestResolvePriceWithoutTiersUsesBasePrice(t *testing.T) {
	t.Parallel()

	table, err := NewTierTable(dec("42.50"), nil)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	for _, qty := range []int{1, 2, 99, 100000} {
		res, err := ResolvePrice(table, qty)
		if err != nil {
			t.Fatalf("qty %d: %v", qty, err)
		}
		if !res.UnitPrice.Equal(dec("42.50")) || res.AppliedTier != nil {
			t.Fatalf("qty %d: expected base price, got %+v", qty, res)
		}
	}
}

func TestResolvePriceRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	item := riceItem(t)
	for _, qty := range []int{0, -1} {
		_, err := ResolvePrice(item.Pricing, qty)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("qty %d: expected validation error, got %v", qty, err)
		}
	}
}

func TestResolvePriceIgnoresMinimumOrderQuantity(t *testing.T) {
	t.Parallel()

	item := riceItem(t)
	res, err := ResolvePrice(item.Pricing, 2)
	if err != nil {
		t.Fatalf("quantity below MOQ must still price: %v", err)
	}
	if !res.UnitPrice.Equal(dec("100")) {
		t.Fatalf("expected base price, got %s", res.UnitPrice)
	}
	if item.AdmitsQuantity(2) {
		t.Fatal("quantity 2 is below the MOQ of 5")
	}
	if !item.AdmitsQuantity(5) {
		t.Fatal("MOQ boundary is inclusive")
	}
}
