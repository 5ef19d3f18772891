package credits

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Package is one purchasable credit bundle.
type Package struct {
	ID        string `json:"id"`
	Credits   int64  `json:"credits"`
	CostCents int64  `json:"costCents"`
	Price     string `json:"price"`
}

var catalog = []Package{
	pkg("starter", 10, 199),
	pkg("basic", 50, 799),
	pkg("pro", 120, 1499),
	pkg("ultimate", 300, 2999),
}

func pkg(id string, credits, cents int64) Package {
	return Package{
		ID:        id,
		Credits:   credits,
		CostCents: cents,
		Price:     decimal.New(cents, -2).StringFixed(2),
	}
}

func (s *Service) Packages() []Package {
	return slices.Clone(catalog)
}

func findPackage(id string) (Package, bool) {
	i := slices.IndexFunc(catalog, func(p Package) bool { return p.ID == id })
	if i < 0 {
		return Package{}, false
	}

	return catalog[i], true
}
