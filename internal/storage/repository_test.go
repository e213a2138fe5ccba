package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"feira/internal/core"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStoreCRUD(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s, err := repo.CreateStore(ctx, core.Store{Name: "Mercado Central", Address: "Rua A, 1"})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if s.ID == 0 || s.Name != "Mercado Central" {
		t.Fatalf("unexpected store %+v", s)
	}

	s.Address = "Rua B, 2"
	updated, err := repo.UpdateStore(ctx, s)
	if err != nil {
		t.Fatalf("update store: %v", err)
	}
	if updated.Address != "Rua B, 2" {
		t.Errorf("address = %q, want %q", updated.Address, "Rua B, 2")
	}

	if err := repo.DeleteStore(ctx, s.ID); err != nil {
		t.Fatalf("delete store: %v", err)
	}
	if _, err := repo.GetStore(ctx, s.ID); err != core.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := repo.CreateStore(ctx, core.Store{Name: "  "}); err != core.ErrEmptyName {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestSeedCategories(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.SeedCategories(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	categories, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(categories) != len(DefaultCategories) {
		t.Fatalf("expected %d categories, got %d", len(DefaultCategories), len(categories))
	}

	// Delete one and seed again: a non-empty table must be left alone.
	if err := repo.DeleteCategory(ctx, categories[0].ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if err := repo.SeedCategories(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	categories, _ = repo.ListCategories(ctx)
	if len(categories) != len(DefaultCategories)-1 {
		t.Errorf("expected %d categories after reseed, got %d", len(DefaultCategories)-1, len(categories))
	}
}

func TestCreateCategoryIdempotent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	first, err := repo.CreateCategory(ctx, "Bebidas")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := repo.CreateCategory(ctx, "Bebidas")
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("duplicate create returned id %d, want %d", second.ID, first.ID)
	}
}

func TestPurchaseTotalRecompute(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s, _ := repo.CreateStore(ctx, core.Store{Name: "Feira"})
	p, err := repo.CreatePurchase(ctx, core.Purchase{Date: day(2025, 3, 10), StoreID: s.ID})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	item, err := repo.CreatePurchaseItem(ctx, core.PurchaseItem{
		PurchaseID:  p.ID,
		ProductName: "arroz",
		Category:    "Mercearia",
		Weight:      2,
		Unit:        core.UnitKilogram,
		UnitPrice:   core.Money{Cents: 550},
		Date:        day(2025, 3, 10),
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	p, _ = repo.GetPurchase(ctx, p.ID)
	if p.Total.Cents != 1100 {
		t.Fatalf("total after insert = %d, want 1100", p.Total.Cents)
	}

	item.Weight = 3
	if _, err := repo.UpdatePurchaseItem(ctx, item); err != nil {
		t.Fatalf("update item: %v", err)
	}
	p, _ = repo.GetPurchase(ctx, p.ID)
	if p.Total.Cents != 1650 {
		t.Fatalf("total after update = %d, want 1650", p.Total.Cents)
	}

	if err := repo.DeletePurchaseItem(ctx, item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	p, _ = repo.GetPurchase(ctx, p.ID)
	if p.Total.Cents != 0 {
		t.Fatalf("total after delete = %d, want 0", p.Total.Cents)
	}
}

func TestCheapestItemTieBreak(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s, _ := repo.CreateStore(ctx, core.Store{Name: "Feira"})
	p, _ := repo.CreatePurchase(ctx, core.Purchase{Date: day(2025, 1, 1), StoreID: s.ID})

	add := func(name, brand string, cents int64, d time.Time) core.PurchaseItem {
		t.Helper()
		item, err := repo.CreatePurchaseItem(ctx, core.PurchaseItem{
			PurchaseID: p.ID, ProductName: name, Brand: brand,
			Weight: 1, Unit: core.UnitPiece,
			UnitPrice: core.Money{Cents: cents}, Date: d,
		})
		if err != nil {
			t.Fatalf("add item: %v", err)
		}
		return item
	}

	add("Leite", "MarcaA", 500, day(2025, 1, 1))
	add("leite", "MarcaB", 450, day(2025, 1, 5))
	newer := add("LEITE", "MarcaB", 450, day(2025, 2, 1))
	add("leite condensado", "", 300, day(2025, 1, 1))

	got, err := repo.CheapestItem(ctx, "LEITE", "")
	if err != nil {
		t.Fatalf("cheapest: %v", err)
	}
	if got == nil || got.ID != newer.ID {
		t.Fatalf("cheapest = %+v, want id %d (price tie resolves to most recent)", got, newer.ID)
	}

	got, err = repo.CheapestItem(ctx, "leite", "marcaa")
	if err != nil {
		t.Fatalf("cheapest by brand: %v", err)
	}
	if got == nil || got.UnitPrice.Cents != 500 {
		t.Fatalf("brand filter ignored: %+v", got)
	}

	got, err = repo.CheapestItem(ctx, "pão", "")
	if err != nil {
		t.Fatalf("cheapest miss: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown product, got %+v", got)
	}
}

func TestSearchItemsByName(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s, _ := repo.CreateStore(ctx, core.Store{Name: "Feira"})
	p, _ := repo.CreatePurchase(ctx, core.Purchase{Date: day(2025, 1, 1), StoreID: s.ID})

	for _, it := range []struct {
		name string
		d    time.Time
	}{
		{"Leite Integral", day(2025, 1, 2)},
		{"leite desnatado", day(2025, 2, 2)},
		{"Arroz", day(2025, 1, 3)},
	} {
		if _, err := repo.CreatePurchaseItem(ctx, core.PurchaseItem{
			PurchaseID: p.ID, ProductName: it.name, Weight: 1, Unit: core.UnitPiece,
			UnitPrice: core.Money{Cents: 100}, Date: it.d,
		}); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}

	items, err := repo.SearchItemsByName(ctx, "LEITE")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(items))
	}
	if items[0].ProductName != "leite desnatado" {
		t.Errorf("expected newest first, got %q", items[0].ProductName)
	}
}

func TestShoppingListCascadeDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	l, err := repo.CreateShoppingList(ctx, core.ShoppingList{Name: "Feira da semana"})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if l.Status != core.ListActive {
		t.Errorf("status = %q, want active", l.Status)
	}

	item, err := repo.CreateListItem(ctx, core.ShoppingListItem{ListID: l.ID, ProductName: "banana"})
	if err != nil {
		t.Fatalf("create list item: %v", err)
	}

	item.Checked = true
	item.Brand = "Prata"
	item.Price = core.Money{Cents: 399}
	if _, err := repo.UpdateListItem(ctx, item); err != nil {
		t.Fatalf("update list item: %v", err)
	}

	if err := repo.DeleteShoppingList(ctx, l.ID); err != nil {
		t.Fatalf("delete list: %v", err)
	}
	if _, err := repo.GetListItem(ctx, item.ID); err != core.ErrNotFound {
		t.Errorf("expected cascade delete of items, got %v", err)
	}
}

func TestAllowanceUpsert(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	a, err := repo.UpsertAllowance(ctx, core.MealAllowance{MonthKey: "2025-03", Amount: core.Money{Cents: 80000}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	b, err := repo.UpsertAllowance(ctx, core.MealAllowance{MonthKey: "2025-03", Amount: core.Money{Cents: 90000}})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if b.ID != a.ID {
		t.Errorf("upsert created a new row: id %d vs %d", b.ID, a.ID)
	}
	if b.Amount.Cents != 90000 {
		t.Errorf("amount = %d, want 90000", b.Amount.Cents)
	}

	all, err := repo.ListAllowances(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 allowance, got %d", len(all))
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s, _ := repo.CreateStore(ctx, core.Store{Name: "Feira"})
	p, _ := repo.CreatePurchase(ctx, core.Purchase{Date: day(2025, 3, 1), StoreID: s.ID})

	pending, err := repo.PendingSyncPurchases(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != p.ID {
		t.Fatalf("expected purchase %d pending, got %+v", p.ID, pending)
	}

	if err := repo.MarkSynced(ctx, p.ID, pending[0].Version); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, _ = repo.PendingSyncPurchases(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected no pending after sync, got %+v", pending)
	}

	// A stale version must not clear the flag.
	if err := repo.MarkSyncError(ctx, p.ID); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	if err := repo.MarkSynced(ctx, p.ID, 999); err != nil {
		t.Fatalf("mark synced stale: %v", err)
	}
	pending, _ = repo.PendingSyncPurchases(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("stale version cleared sync flag: %+v", pending)
	}
}
