// Package pricing answers "where was this cheapest" and "what have I paid
// before" questions over the purchase-item history.
package pricing

import (
	"context"
	"fmt"
	"strings"

	"feira/internal/core"
)

// MinQueryLength keeps one- and two-letter lookups from scanning the whole
// item history.
const MinQueryLength = 3

// ItemReader is the slice of the storage layer the engine needs.
type ItemReader interface {
	CheapestItem(ctx context.Context, productName, brand string) (*core.PurchaseItem, error)
	SearchItemsByName(ctx context.Context, query string) ([]core.PurchaseItem, error)
}

// HistoryStats summarizes a product's price history.
type HistoryStats struct {
	Lowest    core.Money
	Highest   core.Money
	Variation float64 // percent change from the oldest to the newest record
}

type Engine struct {
	items ItemReader
}

func NewEngine(items ItemReader) *Engine {
	return &Engine{items: items}
}

// LowestPrice returns the cheapest recorded item for an exact product name
// (case-insensitive) and optional exact brand, or nil when the product was
// never bought. Ties resolve to the most recent purchase.
func (e *Engine) LowestPrice(ctx context.Context, productName, brand string) (*core.PurchaseItem, error) {
	productName = strings.TrimSpace(productName)
	if len([]rune(productName)) < MinQueryLength {
		return nil, core.ErrQueryTooShort
	}
	item, err := e.items.CheapestItem(ctx, productName, strings.TrimSpace(brand))
	if err != nil {
		return nil, fmt.Errorf("lowest price for %q: %w", productName, err)
	}
	return item, nil
}

// ProductHistory returns every item whose name contains the query,
// newest first.
func (e *Engine) ProductHistory(ctx context.Context, productName string) ([]core.PurchaseItem, error) {
	productName = strings.TrimSpace(productName)
	if len([]rune(productName)) < MinQueryLength {
		return nil, core.ErrQueryTooShort
	}
	items, err := e.items.SearchItemsByName(ctx, productName)
	if err != nil {
		return nil, fmt.Errorf("product history for %q: %w", productName, err)
	}
	return items, nil
}

// Stats computes price extremes and the oldest-to-newest variation over a
// history slice as returned by ProductHistory (newest first). Zero history
// yields zero stats.
func Stats(items []core.PurchaseItem) HistoryStats {
	var s HistoryStats
	if len(items) == 0 {
		return s
	}
	s.Lowest = items[0].UnitPrice
	s.Highest = items[0].UnitPrice
	for _, i := range items[1:] {
		if i.UnitPrice.Cents < s.Lowest.Cents {
			s.Lowest = i.UnitPrice
		}
		if i.UnitPrice.Cents > s.Highest.Cents {
			s.Highest = i.UnitPrice
		}
	}
	newest := items[0].UnitPrice.Cents
	oldest := items[len(items)-1].UnitPrice.Cents
	if oldest != 0 {
		s.Variation = float64(newest-oldest) / float64(oldest) * 100
	}
	return s
}
