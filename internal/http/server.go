// Package http exposes the grocery tracker as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"feira/internal/allowance"
	"feira/internal/cache"
	"feira/internal/core"
	"feira/internal/pricing"
	"feira/internal/purchase"
	"feira/internal/reports"
	"feira/internal/storage"
)

// SyncPublisher enqueues a spreadsheet export for a saved purchase.
// A nil publisher disables export; purchases stay queued for the sweep.
type SyncPublisher interface {
	PublishPurchaseSync(ctx context.Context, id, version int64) error
}

type Server struct {
	http.Server

	repo      *storage.SQLiteRepository
	builder   *purchase.Builder
	prices    *pricing.Engine
	dashboard *reports.Engine
	ledger    *allowance.Ledger
	publisher SyncPublisher

	rateLimiter *rateLimiter

	// Overview is the one expensive read; cached briefly and invalidated
	// by every purchase mutation.
	overviewCache *cache.LRUCache[core.Overview]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires every route. publisher may be nil when AMQP is not
// configured.
func NewServer(addr string, repo *storage.SQLiteRepository, publisher SyncPublisher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:          repo,
		builder:       purchase.NewBuilder(repo),
		prices:        pricing.NewEngine(repo),
		dashboard:     reports.NewEngine(repo),
		ledger:        allowance.NewLedger(repo),
		publisher:     publisher,
		rateLimiter:   newRateLimiter(),
		overviewCache: cache.NewLRUCache[core.Overview](8, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}
	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/stores", s.handleListStores)
	mux.HandleFunc("POST /api/stores", s.handleCreateStore)
	mux.HandleFunc("PUT /api/stores/{id}", s.handleUpdateStore)
	mux.HandleFunc("DELETE /api/stores/{id}", s.handleDeleteStore)

	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	mux.HandleFunc("PUT /api/products/{id}", s.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/draft", s.handleGetDraft)
	mux.HandleFunc("DELETE /api/draft", s.handleResetDraft)
	mux.HandleFunc("POST /api/draft/items", s.handleAddDraftItem)
	mux.HandleFunc("PUT /api/draft/items/{id}", s.handleEditDraftItem)
	mux.HandleFunc("DELETE /api/draft/items/{id}", s.handleRemoveDraftItem)
	mux.HandleFunc("POST /api/draft/import", s.handleImportList)
	mux.HandleFunc("POST /api/draft/save", s.handleSaveDraft)

	mux.HandleFunc("GET /api/purchases", s.handleListPurchases)
	mux.HandleFunc("GET /api/purchases/{id}", s.handleGetPurchase)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.handleDeletePurchase)
	mux.HandleFunc("GET /api/purchase-items", s.handleSearchItems)
	mux.HandleFunc("PUT /api/purchase-items/{id}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /api/purchase-items/{id}", s.handleDeleteItem)

	mux.HandleFunc("GET /api/lists", s.handleListLists)
	mux.HandleFunc("POST /api/lists", s.handleCreateList)
	mux.HandleFunc("GET /api/lists/{id}", s.handleGetList)
	mux.HandleFunc("DELETE /api/lists/{id}", s.handleDeleteList)
	mux.HandleFunc("POST /api/lists/{id}/items", s.handleCreateListItem)
	mux.HandleFunc("POST /api/lists/{id}/finish", s.handleFinishShopping)
	mux.HandleFunc("PUT /api/list-items/{id}", s.handleUpdateListItem)
	mux.HandleFunc("DELETE /api/list-items/{id}", s.handleDeleteListItem)

	mux.HandleFunc("GET /api/prices/lowest", s.handleLowestPrice)
	mux.HandleFunc("GET /api/prices/history", s.handlePriceHistory)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux.HandleFunc("GET /api/allowances", s.handleListAllowances)
	mux.HandleFunc("POST /api/allowances", s.handleRecordAllowance)
	mux.HandleFunc("GET /api/allowances/status", s.handleAllowanceStatus)

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the cleanup goroutines before draining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
