// Package purchase implements the in-memory draft a shopping trip is
// assembled in before it is committed to storage.
package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"feira/internal/core"
)

// Repository is the slice of the storage layer the builder writes through.
type Repository interface {
	CreatePurchase(ctx context.Context, p core.Purchase) (core.Purchase, error)
	CreatePurchaseItem(ctx context.Context, i core.PurchaseItem) (core.PurchaseItem, error)
	DeletePurchase(ctx context.Context, id int64) error
	GetShoppingList(ctx context.Context, id int64) (core.ShoppingList, error)
	ItemsByList(ctx context.Context, listID int64) ([]core.ShoppingListItem, error)
	DeleteShoppingList(ctx context.Context, id int64) error
}

// ItemInput is what the user types for one line: the package price as paid
// at the till, not the normalized unit price.
type ItemInput struct {
	ProductName  string
	Brand        string
	Category     string
	PackagePrice int64 // cents
	Weight       float64
	Unit         core.Unit
	Promo        bool
}

// Line is one draft row. Planned lines come from an imported shopping list
// and carry no price yet; only Priced lines contribute to the total and are
// persisted on save.
type Line struct {
	ID           int64
	ProductName  string
	Brand        string
	Category     string
	Weight       float64
	Unit         core.Unit
	UnitPrice    core.Money
	Promo        bool
	Status       core.LineStatus
	SourceListID int64 // 0 when added manually
}

// ValidationError collects everything wrong with a save attempt.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid purchase: " + strings.Join(e.Reasons, "; ")
}

// Builder accumulates draft lines and commits them as one purchase.
// All methods are safe for concurrent use; only one Save may be in flight
// at a time.
type Builder struct {
	mu     sync.Mutex
	saving bool
	nextID int64
	lines  []Line

	repo Repository
}

func NewBuilder(repo Repository) *Builder {
	return &Builder{repo: repo}
}

// AddItem appends a priced line. The package price is normalized to a unit
// price by the line weight; weights below 1 count as 1.
func (b *Builder) AddItem(in ItemInput) (Line, error) {
	line, err := buildLine(in)
	if err != nil {
		return Line{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	line.ID = b.nextID
	b.lines = append(b.lines, line)
	return line, nil
}

func buildLine(in ItemInput) (Line, error) {
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		return Line{}, core.ErrEmptyProduct
	}
	if in.PackagePrice <= 0 {
		return Line{}, core.ErrInvalidAmount
	}
	weight := in.Weight
	if weight <= 0 {
		weight = 1
	}
	unit := in.Unit
	if unit == "" {
		unit = core.UnitPiece
	}
	if !unit.Valid() {
		return Line{}, core.ErrInvalidUnit
	}
	return Line{
		ProductName: name,
		Brand:       strings.TrimSpace(in.Brand),
		Category:    in.Category,
		Weight:      weight,
		Unit:        unit,
		UnitPrice:   core.Money{Cents: core.UnitPriceCents(in.PackagePrice, weight)},
		Promo:       in.Promo,
		Status:      core.LinePriced,
	}, nil
}

// ImportFromList turns every item of a shopping list into a draft line.
// Checked items with a captured price come in already Priced; the rest are
// Planned and must be priced before they count. Each line remembers its
// source list so the list can be deleted after a successful save.
func (b *Builder) ImportFromList(ctx context.Context, listID int64) ([]Line, error) {
	if _, err := b.repo.GetShoppingList(ctx, listID); err != nil {
		return nil, fmt.Errorf("load shopping list %d: %w", listID, err)
	}
	items, err := b.repo.ItemsByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("load shopping list %d items: %w", listID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var imported []Line
	for _, item := range items {
		unit := item.Unit
		if unit == "" || !unit.Valid() {
			unit = core.UnitPiece
		}
		line := Line{
			ProductName:  item.ProductName,
			Brand:        item.Brand,
			Weight:       1,
			Unit:         unit,
			Status:       core.LinePlanned,
			SourceListID: listID,
		}
		if item.Checked && item.Price.Cents > 0 {
			line.UnitPrice = core.Money{Cents: core.UnitPriceCents(item.Price.Cents, line.Weight)}
			line.Status = core.LinePriced
		}
		b.nextID++
		line.ID = b.nextID
		b.lines = append(b.lines, line)
		imported = append(imported, line)
	}
	return imported, nil
}

// EditItem replaces the editable fields of a line and re-normalizes its
// unit price. Editing prices a Planned line.
func (b *Builder) EditItem(id int64, in ItemInput) (Line, error) {
	updated, err := buildLine(in)
	if err != nil {
		return Line{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for idx := range b.lines {
		if b.lines[idx].ID != id {
			continue
		}
		updated.ID = id
		updated.SourceListID = b.lines[idx].SourceListID
		b.lines[idx] = updated
		return updated, nil
	}
	return Line{}, core.ErrNotFound
}

func (b *Builder) RemoveItem(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for idx := range b.lines {
		if b.lines[idx].ID == id {
			b.lines = append(b.lines[:idx], b.lines[idx+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

// Lines returns a snapshot of the draft.
func (b *Builder) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *Builder) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines) == 0
}

// Total sums the rounded line totals of Priced lines. Planned lines
// contribute nothing.
func (b *Builder) Total() core.Money {
	b.mu.Lock()
	defer b.mu.Unlock()
	return totalOf(b.lines)
}

func totalOf(lines []Line) core.Money {
	var cents int64
	for _, l := range lines {
		if l.Status != core.LinePriced {
			continue
		}
		cents += core.LineTotalCents(l.UnitPrice.Cents, l.Weight)
	}
	return core.Money{Cents: cents}
}

// Reset discards the draft.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}

// Save commits the Priced lines as one purchase. On success the consumed
// source shopping lists are deleted and the draft resets to empty. When an
// item insert fails mid-write, the orphaned purchase header is deleted so a
// failed save leaves no partial purchase behind.
func (b *Builder) Save(ctx context.Context, storeID int64, date time.Time, payment core.PaymentMethod) (core.Purchase, error) {
	b.mu.Lock()
	if b.saving {
		b.mu.Unlock()
		return core.Purchase{}, core.ErrSaveInFlight
	}
	b.saving = true
	lines := make([]Line, len(b.lines))
	copy(lines, b.lines)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.saving = false
		b.mu.Unlock()
	}()

	if err := validateSave(storeID, lines); err != nil {
		return core.Purchase{}, err
	}
	if date.IsZero() {
		date = time.Now()
	}

	saved, err := b.repo.CreatePurchase(ctx, core.Purchase{
		Date:    date,
		StoreID: storeID,
		Total:   totalOf(lines),
		Payment: payment.Normalize(),
	})
	if err != nil {
		return core.Purchase{}, fmt.Errorf("create purchase: %w", err)
	}

	for _, l := range lines {
		if l.Status != core.LinePriced {
			continue
		}
		_, err := b.repo.CreatePurchaseItem(ctx, core.PurchaseItem{
			PurchaseID:  saved.ID,
			ProductName: l.ProductName,
			Brand:       l.Brand,
			Category:    l.Category,
			Weight:      l.Weight,
			Unit:        l.Unit,
			UnitPrice:   l.UnitPrice,
			Promo:       l.Promo,
			Date:        date,
		})
		if err != nil {
			if delErr := b.repo.DeletePurchase(ctx, saved.ID); delErr != nil {
				return core.Purchase{}, fmt.Errorf(
					"insert item %q: %w (compensating delete of purchase %d also failed: %v)",
					l.ProductName, err, saved.ID, delErr)
			}
			return core.Purchase{}, fmt.Errorf("insert item %q: %w", l.ProductName, err)
		}
	}

	for _, listID := range sourceLists(lines) {
		if err := b.repo.DeleteShoppingList(ctx, listID); err != nil {
			// The purchase is committed; a leftover list is only clutter.
			slog.WarnContext(ctx, "Failed to delete consumed shopping list",
				"list_id", listID, "purchase_id", saved.ID, "error", err)
		}
	}

	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()

	saved.Total = totalOf(lines)
	return saved, nil
}

func validateSave(storeID int64, lines []Line) error {
	var reasons []string
	if storeID == 0 {
		reasons = append(reasons, core.ErrNoStore.Error())
	}
	priced := 0
	for _, l := range lines {
		if l.Status == core.LinePriced {
			priced++
		}
	}
	if priced == 0 {
		reasons = append(reasons, core.ErrNoPricedItems.Error())
	}
	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

func sourceLists(lines []Line) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	for _, l := range lines {
		if l.SourceListID != 0 && !seen[l.SourceListID] {
			seen[l.SourceListID] = true
			ids = append(ids, l.SourceListID)
		}
	}
	return ids
}
