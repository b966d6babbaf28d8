// Package shop provides the coin package catalog offered on the purchase page.
package shop

import (
	"github.com/shopspring/decimal"
)

// PackageID identifies a coin package.
type PackageID string

// Package ids in display order.
const (
	PackageStarter PackageID = "starter"
	PackagePopular PackageID = "popular"
	PackageValue   PackageID = "value"
	PackageMega    PackageID = "mega"
)

// CoinPackage describes a purchasable bundle of coins.
type CoinPackage struct {
	ID      PackageID       `json:"id"`
	Name    string          `json:"name"`
	Coins   int64           `json:"coins"`
	Bonus   int64           `json:"bonus"`
	Price   decimal.Decimal `json:"price"` // rupees
	Popular bool            `json:"popular"`
}

// TotalCoins returns the coins credited for the package, bonus included.
func (p CoinPackage) TotalCoins() int64 {
	return p.Coins + p.Bonus
}

// CoinPackages contains all available packages keyed by id.
var CoinPackages = map[PackageID]CoinPackage{
	PackageStarter: {
		ID:    PackageStarter,
		Name:  "Starter",
		Coins: 500,
		Price: decimal.NewFromInt(99),
	},
	PackagePopular: {
		ID:      PackagePopular,
		Name:    "Popular",
		Coins:   1200,
		Bonus:   200,
		Price:   decimal.NewFromInt(199),
		Popular: true,
	},
	PackageValue: {
		ID:    PackageValue,
		Name:  "Value",
		Coins: 2500,
		Bonus: 500,
		Price: decimal.NewFromInt(399),
	},
	PackageMega: {
		ID:    PackageMega,
		Name:  "Mega",
		Coins: 5000,
		Bonus: 1200,
		Price: decimal.NewFromInt(699),
	},
}

// GetAllPackages returns all coin packages in display order
func GetAllPackages() []CoinPackage {
	order := []PackageID{
		PackageStarter,
		PackagePopular,
		PackageValue,
		PackageMega,
	}

	packages := make([]CoinPackage, 0, len(order))
	for _, id := range order {
		if pkg, ok := CoinPackages[id]; ok {
			packages = append(packages, pkg)
		}
	}
	return packages
}

// GetPackage returns the package for a given id
func GetPackage(id PackageID) (CoinPackage, bool) {
	pkg, ok := CoinPackages[id]
	return pkg, ok
}

// FormatPrice renders a rupee amount the way receipts show it.
func FormatPrice(price decimal.Decimal) string {
	if price.IsInteger() {
		return "₹" + price.String()
	}
	return "₹" + price.StringFixed(2)
}
