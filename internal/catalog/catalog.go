// Package catalog holds the immutable price list presented to buyers.
package catalog

import (
	"fmt"
	"strings"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

// Catalog is built once at start-up and never mutated afterwards,
// so it is safe for concurrent use without locking.
type Catalog struct {
	offers []domain.Offer
	index  map[string]int
}

// New builds a catalog from configured offers. An empty list falls back to Default.
func New(offers []config.OfferConfig) (*Catalog, error) {
	if len(offers) == 0 {
		offers = Default()
	}

	c := &Catalog{
		offers: make([]domain.Offer, 0, len(offers)),
		index:  make(map[string]int, len(offers)),
	}

	for _, oc := range offers {
		offer := domain.Offer{
			Category: domain.Category(oc.Category),
			Group:    strings.TrimSpace(oc.Group),
			Key:      strings.TrimSpace(oc.Key),
			Label:    strings.TrimSpace(oc.Label),
			Price:    oc.Price,
		}

		if !offer.Category.Valid() {
			return nil, fmt.Errorf("catalog: unknown category %q for key %q", oc.Category, oc.Key)
		}
		if offer.Key == "" || strings.ContainsAny(offer.Key, "|: ") {
			return nil, fmt.Errorf("catalog: invalid key %q", oc.Key)
		}
		if offer.Price <= 0 {
			return nil, fmt.Errorf("catalog: non-positive price for %s/%s", offer.Category, offer.Key)
		}
		if offer.Label == "" {
			offer.Label = offer.Key
		}

		id := indexKey(offer.Category, offer.Key)
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate offer %s/%s", offer.Category, offer.Key)
		}

		c.index[id] = len(c.offers)
		c.offers = append(c.offers, offer)
	}

	return c, nil
}

// Lookup returns the offer for category and key.
func (c *Catalog) Lookup(category domain.Category, key string) (domain.Offer, bool) {
	i, ok := c.index[indexKey(category, key)]
	if !ok {
		return domain.Offer{}, false
	}
	return c.offers[i], true
}

// Offers lists the offers of a category in configuration order.
func (c *Catalog) Offers(category domain.Category) []domain.Offer {
	var out []domain.Offer
	for _, offer := range c.offers {
		if offer.Category == category {
			out = append(out, offer)
		}
	}
	return out
}

// Groups lists the distinct non-empty groups of a category in first-seen order.
func (c *Catalog) Groups(category domain.Category) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, offer := range c.offers {
		if offer.Category != category || offer.Group == "" {
			continue
		}
		if _, ok := seen[offer.Group]; ok {
			continue
		}
		seen[offer.Group] = struct{}{}
		out = append(out, offer.Group)
	}
	return out
}

// InGroup lists the offers of a category that belong to group.
func (c *Catalog) InGroup(category domain.Category, group string) []domain.Offer {
	var out []domain.Offer
	for _, offer := range c.offers {
		if offer.Category == category && offer.Group == group {
			out = append(out, offer)
		}
	}
	return out
}

// Len returns the number of offers.
func (c *Catalog) Len() int {
	return len(c.offers)
}

func indexKey(category domain.Category, key string) string {
	return string(category) + "|" + key
}
