// Package domain declares the storefront entities shared across packages.
package domain

// Category groups offers by how they are fulfilled.
type Category string

const (
	CategoryCurrency Category = "currency"
	CategoryPremium  Category = "premium"
	CategoryStars    Category = "stars"
)

// Categories lists every category in menu order.
var Categories = []Category{CategoryCurrency, CategoryPremium, CategoryStars}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCurrency, CategoryPremium, CategoryStars:
		return true
	default:
		return false
	}
}

// Offer is a priced item of the catalog.
type Offer struct {
	Category Category
	Group    string
	Key      string
	Label    string
	Price    int64
}
