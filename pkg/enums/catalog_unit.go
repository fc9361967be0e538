package enums

import "fmt"

// CatalogUnit is the unit of measure a catalog item is sold in. It is
// informational to pricing: quantities are always whole units of it.
type CatalogUnit string

const (
	CatalogUnitKilogram   CatalogUnit = "kg"
	CatalogUnitGram       CatalogUnit = "g"
	CatalogUnitLitre      CatalogUnit = "l"
	CatalogUnitMillilitre CatalogUnit = "ml"
	CatalogUnitPiece      CatalogUnit = "piece"
	CatalogUnitPack       CatalogUnit = "pack"
	CatalogUnitDozen      CatalogUnit = "dozen"
)

var validCatalogUnits = []CatalogUnit{
	CatalogUnitKilogram,
	CatalogUnitGram,
	CatalogUnitLitre,
	CatalogUnitMillilitre,
	CatalogUnitPiece,
	CatalogUnitPack,
	CatalogUnitDozen,
}

// String implements fmt.Stringer.
func (u CatalogUnit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known CatalogUnit.
func (u CatalogUnit) IsValid() bool {
	for _, candidate := range validCatalogUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseCatalogUnit converts raw input into a CatalogUnit.
func ParseCatalogUnit(value string) (CatalogUnit, error) {
	for _, candidate := range validCatalogUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid catalog unit %q", value)
}
