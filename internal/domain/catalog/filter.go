package catalog

import (
	"sort"
	"strings"
)

// SortOrder defines a supported browse ordering.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortPriceLow  SortOrder = "price_low"
	SortPriceHigh SortOrder = "price_high"
)

// FilterState is everything a browse page can narrow a fetched set by.
// Facets are OR-combined internally and AND-combined with each other.
// The price range is inclusive; a nil PriceMax leaves it open-ended and an
// inverted range matches nothing.
type FilterState struct {
	Query      string
	Categories []string
	Conditions []string
	Locations  []string
	Genders    []string
	RoomTypes  []string
	Urgencies  []string
	PriceMin   int64
	PriceMax   *int64
	Sort       SortOrder
}

// Normalized returns a sanitized copy of f.
func (f FilterState) Normalized() FilterState {
	out := f
	out.Query = strings.TrimSpace(strings.ToLower(out.Query))
	out.Categories = normalizeTokens(out.Categories)
	out.Conditions = normalizeTokens(out.Conditions)
	out.Locations = normalizeTokens(out.Locations)
	out.Genders = normalizeTokens(out.Genders)
	out.RoomTypes = normalizeTokens(out.RoomTypes)
	out.Urgencies = normalizeTokens(out.Urgencies)
	if out.PriceMin < 0 {
		out.PriceMin = 0
	}
	if out.PriceMax != nil {
		limit := *out.PriceMax
		out.PriceMax = &limit
	}
	switch out.Sort {
	case SortNewest, SortOldest, SortPriceLow, SortPriceHigh:
	default:
		out.Sort = SortNewest
	}
	return out
}

// Apply runs search, facets, price range and sort over items and returns a new slice.
// Input order and contents are left untouched.
func Apply(items []*Document, state FilterState) []*Document {
	f := state.Normalized()
	out := make([]*Document, 0, len(items))
	for _, doc := range items {
		if doc == nil {
			continue
		}
		if !f.matchesQuery(doc) || !f.matchesFacets(doc) || !f.matchesPrice(doc) {
			continue
		}
		out = append(out, doc)
	}
	sortDocuments(out, f.Sort)
	return out
}

func (f FilterState) matchesQuery(doc *Document) bool {
	if f.Query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Title), f.Query) ||
		strings.Contains(strings.ToLower(doc.Description), f.Query) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), f.Query) {
			return true
		}
	}
	return false
}

func (f FilterState) matchesFacets(doc *Document) bool {
	return anyOf(f.Categories, doc.Category) &&
		anyOf(f.Conditions, string(doc.Condition)) &&
		anyOf(f.Locations, doc.Location) &&
		anyOf(f.Genders, doc.Gender) &&
		anyOf(f.RoomTypes, doc.RoomType) &&
		anyOf(f.Urgencies, doc.Urgency)
}

func (f FilterState) matchesPrice(doc *Document) bool {
	if doc.Price < f.PriceMin {
		return false
	}
	if f.PriceMax != nil && doc.Price > *f.PriceMax {
		return false
	}
	return true
}

// PriceAtMost returns an upper price bound for FilterState.PriceMax.
func PriceAtMost(limit int64) *int64 {
	return &limit
}

// anyOf reports whether value matches one of wanted; an empty facet matches everything.
func anyOf(wanted []string, value string) bool {
	if len(wanted) == 0 {
		return true
	}
	value = strings.ToLower(strings.TrimSpace(value))
	for _, w := range wanted {
		if w == value {
			return true
		}
	}
	return false
}

func sortDocuments(docs []*Document, order SortOrder) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		switch order {
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case SortPriceLow:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case SortPriceHigh:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
