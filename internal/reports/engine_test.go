package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"feira/internal/core"
)

type fakeRepo struct {
	purchases []core.Purchase
	items     []core.PurchaseItem
	stores    []core.Store
	err       error
}

func (f *fakeRepo) ListPurchases(ctx context.Context) ([]core.Purchase, error) {
	return f.purchases, f.err
}

func (f *fakeRepo) ListAllItems(ctx context.Context) ([]core.PurchaseItem, error) {
	return f.items, f.err
}

func (f *fakeRepo) ListStores(ctx context.Context) ([]core.Store, error) {
	return f.stores, f.err
}

func purchaseOn(y int, m time.Month, d int, storeID, cents int64) core.Purchase {
	return core.Purchase{
		Date:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		StoreID: storeID,
		Total:   core.Money{Cents: cents},
	}
}

func TestMonthlyTotals(t *testing.T) {
	repo := &fakeRepo{purchases: []core.Purchase{
		purchaseOn(2025, 3, 5, 1, 1000),
		purchaseOn(2025, 1, 10, 1, 2000),
		purchaseOn(2025, 3, 20, 1, 500),
	}}
	engine := NewEngine(repo)

	got, err := engine.MonthlyTotals(context.Background())
	if err != nil {
		t.Fatalf("monthly totals: %v", err)
	}
	want := []core.MonthTotal{
		{MonthKey: "2025-01", Total: core.Money{Cents: 2000}},
		{MonthKey: "2025-03", Total: core.Money{Cents: 1500}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d months, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCategoryTotalsMacroGrouping(t *testing.T) {
	repo := &fakeRepo{items: []core.PurchaseItem{
		{Category: "Padaria", Weight: 1, UnitPrice: core.Money{Cents: 500}},
		{Category: "Mercearia", Weight: 2, UnitPrice: core.Money{Cents: 300}},
		{Category: "Limpeza", Weight: 1, UnitPrice: core.Money{Cents: 200}},
		{Category: "Eletrônicos", Weight: 1, UnitPrice: core.Money{Cents: 9900}},
	}}
	engine := NewEngine(repo)

	got, err := engine.CategoryTotals(context.Background())
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	want := []core.CategoryTotal{
		{Name: "Outros", Total: core.Money{Cents: 9900}},
		{Name: "Alimentos", Total: core.Money{Cents: 1100}},
		{Name: "Casa", Total: core.Money{Cents: 200}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d groups, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("group[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStoreRankingAscendingByAverage(t *testing.T) {
	repo := &fakeRepo{
		purchases: []core.Purchase{
			purchaseOn(2025, 1, 1, 1, 3000),
			purchaseOn(2025, 1, 8, 1, 1000),
			purchaseOn(2025, 1, 15, 2, 1500),
			purchaseOn(2025, 1, 20, 3, 500),
		},
		stores: []core.Store{
			{ID: 1, Name: "Atacadão"},
			{ID: 2, Name: "Pão de Açúcar"},
		},
	}
	engine := NewEngine(repo)

	got, err := engine.StoreRanking(context.Background())
	if err != nil {
		t.Fatalf("store ranking: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 stores, got %d", len(got))
	}
	if got[0].StoreID != 3 || got[0].Average.Cents != 500 {
		t.Errorf("cheapest first: got %+v", got[0])
	}
	if got[0].StoreName != "Desconhecido" {
		t.Errorf("missing store should rank under the unknown label, got %q", got[0].StoreName)
	}
	if got[1].StoreID != 2 || got[2].StoreID != 1 {
		t.Errorf("order wrong: %+v", got)
	}
	if got[2].Count != 2 || got[2].Total.Cents != 4000 || got[2].Average.Cents != 2000 {
		t.Errorf("store 1 stats wrong: %+v", got[2])
	}
}

func TestInflationRate(t *testing.T) {
	cases := []struct {
		name      string
		purchases []core.Purchase
		want      float64
	}{
		{"no data", nil, 0},
		{"single month", []core.Purchase{purchaseOn(2025, 1, 1, 1, 1000)}, 0},
		{
			"increase",
			[]core.Purchase{
				purchaseOn(2025, 1, 1, 1, 1000),
				purchaseOn(2025, 2, 1, 1, 1200),
			},
			20,
		},
		{
			"decrease",
			[]core.Purchase{
				purchaseOn(2025, 1, 1, 1, 1000),
				purchaseOn(2025, 2, 1, 1, 900),
			},
			-10,
		},
		{
			"zero previous month",
			[]core.Purchase{
				purchaseOn(2025, 1, 1, 1, 0),
				purchaseOn(2025, 2, 1, 1, 900),
			},
			0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := NewEngine(&fakeRepo{purchases: tc.purchases})
			got, err := engine.InflationRate(context.Background())
			if err != nil {
				t.Fatalf("inflation rate: %v", err)
			}
			if got != tc.want {
				t.Errorf("rate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverview(t *testing.T) {
	repo := &fakeRepo{
		purchases: []core.Purchase{
			purchaseOn(2025, 1, 1, 1, 1000),
			purchaseOn(2025, 2, 1, 1, 1500),
		},
		items: []core.PurchaseItem{
			{Category: "Padaria", Weight: 1, UnitPrice: core.Money{Cents: 1000}},
		},
		stores: []core.Store{{ID: 1, Name: "Feira"}},
	}
	engine := NewEngine(repo)

	got, err := engine.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if got.AllTimeTotal.Cents != 2500 {
		t.Errorf("all-time total = %d, want 2500", got.AllTimeTotal.Cents)
	}
	if len(got.Monthly) != 2 || len(got.ByCategory) != 1 || len(got.StoreRanking) != 1 {
		t.Errorf("overview incomplete: %+v", got)
	}
	if got.InflationRate != 50 {
		t.Errorf("inflation = %v, want 50", got.InflationRate)
	}
}

func TestOverviewPropagatesErrors(t *testing.T) {
	engine := NewEngine(&fakeRepo{err: errors.New("db gone")})
	if _, err := engine.Overview(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
