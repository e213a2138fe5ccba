package sheets

import (
	"context"

	"feira/internal/core"
)

// PurchaseRecord bundles everything an exporter writes for one purchase.
type PurchaseRecord struct {
	Purchase  core.Purchase
	StoreName string
	Items     []core.PurchaseItem
}

// PurchaseWriter is the outbound port for spreadsheet backups.
type PurchaseWriter interface {
	// AppendPurchase writes one row per line item and returns a reference
	// to the written range.
	AppendPurchase(ctx context.Context, rec PurchaseRecord) (rowRef string, err error)
}
