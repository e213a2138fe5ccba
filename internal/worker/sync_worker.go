// Package worker moves saved purchases from SQLite into the spreadsheet
// backup. It consumes AMQP sync messages and also sweeps the sync_status
// column so a purchase is exported even when its message was lost.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"feira/internal/amqp"
	"feira/internal/sheets"
	"feira/internal/storage"
)

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	exporter  sheets.PurchaseWriter
	batchSize int
}

// NewSyncWorker wires the worker. A nil exporter is allowed; the worker
// then marks nothing and only logs, which keeps purchases queued until a
// spreadsheet is configured.
func NewSyncWorker(storage *storage.SQLiteRepository, exporter sheets.PurchaseWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one purchase sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.PurchaseSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)
	return w.exportPurchase(ctx, msg.ID, msg.Version)
}

// ProcessPendingPurchases sweeps purchases whose export never happened.
// Backup mechanism for lost AMQP messages.
func (w *SyncWorker) ProcessPendingPurchases(ctx context.Context) error {
	return w.sweepPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger backlog once at worker startup to
// recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	return w.sweepPending(ctx, w.batchSize*5)
}

func (w *SyncWorker) sweepPending(ctx context.Context, limit int) error {
	pending, err := w.storage.PendingSyncPurchases(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending purchases: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending purchases", "count", len(pending))

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exportPurchase(ctx, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to export purchase", "id", p.ID, "error", err)
		}
	}
	return nil
}

func (w *SyncWorker) exportPurchase(ctx context.Context, id, version int64) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No spreadsheet configured, leaving purchase queued", "id", id)
		return nil
	}

	purchase, err := w.storage.GetPurchase(ctx, id)
	if err != nil {
		return fmt.Errorf("get purchase %d: %w", id, err)
	}
	items, err := w.storage.ItemsByPurchase(ctx, id)
	if err != nil {
		return fmt.Errorf("get purchase %d items: %w", id, err)
	}

	storeName := ""
	if store, err := w.storage.GetStore(ctx, purchase.StoreID); err == nil {
		storeName = store.Name
	} else {
		slog.WarnContext(ctx, "Store lookup failed, exporting without name",
			"purchase_id", id, "store_id", purchase.StoreID, "error", err)
	}

	ref, err := w.exporter.AppendPurchase(ctx, sheets.PurchaseRecord{
		Purchase:  purchase,
		StoreName: storeName,
		Items:     items,
	})
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append purchase %d: %w", id, err)
	}

	if err := w.storage.MarkSynced(ctx, id, version); err != nil {
		// The export itself succeeded; the sweep will retry the flag.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Exported purchase",
		"id", id,
		"version", version,
		"sheets_ref", ref,
		"items", len(items))
	return nil
}
