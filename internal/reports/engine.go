// Package reports recomputes the dashboard aggregations from the full
// purchase history on every call. Nothing here caches; with one household's
// worth of data a full scan is cheaper than keeping materialized views
// consistent.
package reports

import (
	"context"
	"fmt"
	"sort"

	"feira/internal/core"

	"golang.org/x/sync/errgroup"
)

type PurchaseReader interface {
	ListPurchases(ctx context.Context) ([]core.Purchase, error)
}

type ItemReader interface {
	ListAllItems(ctx context.Context) ([]core.PurchaseItem, error)
}

type StoreReader interface {
	ListStores(ctx context.Context) ([]core.Store, error)
}

type Repository interface {
	PurchaseReader
	ItemReader
	StoreReader
}

type Engine struct {
	repo Repository
}

func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// MonthlyTotals groups purchase totals by calendar month, ascending by
// month key.
func (e *Engine) MonthlyTotals(ctx context.Context) ([]core.MonthTotal, error) {
	purchases, err := e.repo.ListPurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	return monthlyTotals(purchases), nil
}

func monthlyTotals(purchases []core.Purchase) []core.MonthTotal {
	byMonth := map[string]int64{}
	for _, p := range purchases {
		byMonth[core.MonthKey(p.Date)] += p.Total.Cents
	}
	out := make([]core.MonthTotal, 0, len(byMonth))
	for key, cents := range byMonth {
		out = append(out, core.MonthTotal{MonthKey: key, Total: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthKey < out[j].MonthKey })
	return out
}

// CategoryTotals groups line-item spend by macro category, descending by
// total. Each line contributes its rounded line total.
func (e *Engine) CategoryTotals(ctx context.Context) ([]core.CategoryTotal, error) {
	items, err := e.repo.ListAllItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	byMacro := map[string]int64{}
	for _, i := range items {
		byMacro[MacroCategory(i.Category)] += core.LineTotalCents(i.UnitPrice.Cents, i.Weight)
	}
	out := make([]core.CategoryTotal, 0, len(byMacro))
	for name, cents := range byMacro {
		out = append(out, core.CategoryTotal{Name: name, Total: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// StoreRanking orders stores by average spend per purchase, cheapest
// first. Stores without purchases are omitted.
func (e *Engine) StoreRanking(ctx context.Context) ([]core.StoreStat, error) {
	purchases, err := e.repo.ListPurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("store ranking: %w", err)
	}
	stores, err := e.repo.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("store ranking: %w", err)
	}
	return storeRanking(purchases, stores), nil
}

func storeRanking(purchases []core.Purchase, stores []core.Store) []core.StoreStat {
	names := make(map[int64]string, len(stores))
	for _, s := range stores {
		names[s.ID] = s.Name
	}

	type acc struct {
		count int
		total int64
	}
	byStore := map[int64]*acc{}
	for _, p := range purchases {
		a := byStore[p.StoreID]
		if a == nil {
			a = &acc{}
			byStore[p.StoreID] = a
		}
		a.count++
		a.total += p.Total.Cents
	}

	out := make([]core.StoreStat, 0, len(byStore))
	for id, a := range byStore {
		name := names[id]
		if name == "" {
			name = "Desconhecido"
		}
		out = append(out, core.StoreStat{
			StoreID:   id,
			StoreName: name,
			Count:     a.count,
			Total:     core.Money{Cents: a.total},
			Average:   core.Money{Cents: a.total / int64(a.count)},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average.Cents != out[j].Average.Cents {
			return out[i].Average.Cents < out[j].Average.Cents
		}
		return out[i].StoreID < out[j].StoreID
	})
	return out
}

// InflationRate compares the last two recorded months. Fewer than two
// months, or a zero previous month, reports zero.
func (e *Engine) InflationRate(ctx context.Context) (float64, error) {
	purchases, err := e.repo.ListPurchases(ctx)
	if err != nil {
		return 0, fmt.Errorf("inflation rate: %w", err)
	}
	return inflationRate(monthlyTotals(purchases)), nil
}

func inflationRate(monthly []core.MonthTotal) float64 {
	if len(monthly) < 2 {
		return 0
	}
	last := monthly[len(monthly)-1].Total.Cents
	prev := monthly[len(monthly)-2].Total.Cents
	if prev == 0 {
		return 0
	}
	return float64(last-prev) / float64(prev) * 100
}

// AllTimeTotal sums every purchase ever recorded.
func (e *Engine) AllTimeTotal(ctx context.Context) (core.Money, error) {
	purchases, err := e.repo.ListPurchases(ctx)
	if err != nil {
		return core.Money{}, fmt.Errorf("all-time total: %w", err)
	}
	var cents int64
	for _, p := range purchases {
		cents += p.Total.Cents
	}
	return core.Money{Cents: cents}, nil
}

// Overview runs the independent aggregations concurrently and assembles
// the dashboard summary.
func (e *Engine) Overview(ctx context.Context) (core.Overview, error) {
	var (
		overview core.Overview
		monthly  []core.MonthTotal
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		purchases, err := e.repo.ListPurchases(ctx)
		if err != nil {
			return fmt.Errorf("overview purchases: %w", err)
		}
		monthly = monthlyTotals(purchases)
		var cents int64
		for _, p := range purchases {
			cents += p.Total.Cents
		}
		overview.AllTimeTotal = core.Money{Cents: cents}
		return nil
	})
	g.Go(func() error {
		byCategory, err := e.CategoryTotals(ctx)
		if err != nil {
			return err
		}
		overview.ByCategory = byCategory
		return nil
	})
	g.Go(func() error {
		ranking, err := e.StoreRanking(ctx)
		if err != nil {
			return err
		}
		overview.StoreRanking = ranking
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}

	overview.Monthly = monthly
	overview.InflationRate = inflationRate(monthly)
	return overview, nil
}
