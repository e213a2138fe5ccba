package core

import (
	"errors"
	"strings"
	"time"
)

const (
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLiter      Unit = "L"
	UnitMilliliter Unit = "ml"
	UnitPiece      Unit = "un"
)

const (
	PaymentMealAllowance PaymentMethod = "va"
	PaymentPersonal      PaymentMethod = "personal"
)

const (
	ListActive    ListStatus = "active"
	ListCompleted ListStatus = "completed"
)

const (
	LinePlanned LineStatus = "planned"
	LinePriced  LineStatus = "priced"
)

type (
	Unit          string
	PaymentMethod string
	ListStatus    string
	LineStatus    string

	Money struct {
		Cents int64
	}

	Store struct {
		ID        int64
		Name      string
		Address   string
		CreatedAt time.Time
	}

	// Product is a catalog entry used for autocomplete and defaults.
	// Purchase items keep their own free-text product name, so editing or
	// deleting a catalog entry never touches historic receipts.
	Product struct {
		ID        int64
		Name      string
		Category  string
		Unit      Unit
		CreatedAt time.Time
	}

	Category struct {
		ID   int64
		Name string
	}

	Purchase struct {
		ID      int64
		Date    time.Time
		StoreID int64
		Total   Money
		Payment PaymentMethod
	}

	// PurchaseItem carries the normalized per-unit price, never the package
	// price. Category is a snapshot string copied at save time.
	PurchaseItem struct {
		ID          int64
		PurchaseID  int64
		ProductName string
		Brand       string
		Category    string
		Weight      float64
		Unit        Unit
		UnitPrice   Money
		Promo       bool
		Date        time.Time
	}

	ShoppingList struct {
		ID        int64
		Name      string
		Status    ListStatus
		CreatedAt time.Time
	}

	ShoppingListItem struct {
		ID          int64
		ListID      int64
		ProductName string
		Brand       string
		Unit        Unit
		Checked     bool
		Price       Money // captured in-store; meaningful only when Checked
	}

	// MealAllowance is the credit received for one month. MonthKey is
	// "YYYY-MM" and unique per record.
	MealAllowance struct {
		ID       int64
		MonthKey string
		Amount   Money
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidWeight = errors.New("invalid weight")
	ErrInvalidUnit   = errors.New("invalid unit")
	ErrInvalidMonth  = errors.New("invalid month key")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyProduct  = errors.New("empty product name")
	ErrNoStore       = errors.New("no store selected")
	ErrNoPricedItems = errors.New("no priced items")
	ErrSaveInFlight  = errors.New("save already in progress")
	ErrQueryTooShort = errors.New("query too short")
	ErrNotFound      = errors.New("not found")
)

// Normalize maps empty or legacy payment methods to the meal-allowance
// default, matching how pre-existing rows without a method are counted.
func (p PaymentMethod) Normalize() PaymentMethod {
	if p == PaymentPersonal {
		return PaymentPersonal
	}
	return PaymentMealAllowance
}

func (u Unit) Valid() bool {
	switch u {
	case UnitKilogram, UnitGram, UnitLiter, UnitMilliliter, UnitPiece:
		return true
	}
	return false
}

// MonthKey formats a date as the "YYYY-MM" grouping key used by the monthly
// aggregations and the allowance ledger.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ValidMonthKey reports whether s parses as "YYYY-MM".
func ValidMonthKey(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s Store) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Unit != "" && !p.Unit.Valid() {
		return ErrInvalidUnit
	}
	return nil
}

func (i PurchaseItem) Validate() error {
	if strings.TrimSpace(i.ProductName) == "" {
		return ErrEmptyProduct
	}
	if err := i.UnitPrice.Validate(); err != nil {
		return err
	}
	if i.Weight <= 0 {
		return ErrInvalidWeight
	}
	if !i.Unit.Valid() {
		return ErrInvalidUnit
	}
	return nil
}

func (l ShoppingList) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (a MealAllowance) Validate() error {
	if !ValidMonthKey(a.MonthKey) {
		return ErrInvalidMonth
	}
	return a.Amount.Validate()
}
