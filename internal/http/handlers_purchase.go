package http

import (
	"log/slog"
	"net/http"

	"feira/internal/core"
	"feira/internal/purchase"
)

type draftItemRequest struct {
	ProductName string  `json:"product_name"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Price       string  `json:"price"` // package price, decimal string
	Weight      float64 `json:"weight"`
	Unit        string  `json:"unit"`
	Promo       bool    `json:"promo"`
}

func (req draftItemRequest) toInput() (purchase.ItemInput, error) {
	cents, err := parseAmount(req.Price)
	if err != nil {
		return purchase.ItemInput{}, core.ErrInvalidAmount
	}
	return purchase.ItemInput{
		ProductName:  sanitizeInput(req.ProductName),
		Brand:        sanitizeInput(req.Brand),
		Category:     sanitizeInput(req.Category),
		PackagePrice: cents,
		Weight:       req.Weight,
		Unit:         core.Unit(req.Unit),
		Promo:        req.Promo,
	}, nil
}

type lineResponse struct {
	ID             int64   `json:"id"`
	ProductName    string  `json:"product_name"`
	Brand          string  `json:"brand,omitempty"`
	Category       string  `json:"category,omitempty"`
	Weight         float64 `json:"weight"`
	Unit           string  `json:"unit"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	LineTotalCents int64   `json:"line_total_cents"`
	Promo          bool    `json:"promo"`
	Status         string  `json:"status"`
	SourceListID   int64   `json:"source_list_id,omitempty"`
}

func toLineResponse(l purchase.Line) lineResponse {
	resp := lineResponse{
		ID:             l.ID,
		ProductName:    l.ProductName,
		Brand:          l.Brand,
		Category:       l.Category,
		Weight:         l.Weight,
		Unit:           string(l.Unit),
		UnitPriceCents: l.UnitPrice.Cents,
		Promo:          l.Promo,
		Status:         string(l.Status),
		SourceListID:   l.SourceListID,
	}
	if l.Status == core.LinePriced {
		resp.LineTotalCents = core.LineTotalCents(l.UnitPrice.Cents, l.Weight)
	}
	return resp
}

type draftResponse struct {
	Lines      []lineResponse `json:"lines"`
	TotalCents int64          `json:"total_cents"`
}

func (s *Server) draftResponse() draftResponse {
	lines := s.builder.Lines()
	out := draftResponse{Lines: make([]lineResponse, 0, len(lines))}
	for _, l := range lines {
		out.Lines = append(out.Lines, toLineResponse(l))
	}
	out.TotalCents = s.builder.Total().Cents
	return out
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.draftResponse())
}

func (s *Server) handleResetDraft(w http.ResponseWriter, r *http.Request) {
	s.builder.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddDraftItem(w http.ResponseWriter, r *http.Request) {
	var req draftItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	line, err := s.builder.AddItem(in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineResponse(line))
}

func (s *Server) handleEditDraftItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req draftItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	line, err := s.builder.EditItem(id, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineResponse(line))
}

func (s *Server) handleRemoveDraftItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.builder.RemoveItem(id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListID int64 `json:"list_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ListID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	imported, err := s.builder.ImportFromList(r.Context(), req.ListID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]lineResponse, 0, len(imported))
	for _, l := range imported {
		out = append(out, toLineResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

type saveDraftRequest struct {
	StoreID int64  `json:"store_id"`
	Date    string `json:"date"`
	Payment string `json:"payment"`
}

type purchaseResponse struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	StoreID    int64  `json:"store_id"`
	TotalCents int64  `json:"total_cents"`
	Payment    string `json:"payment"`
}

func toPurchaseResponse(p core.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:         p.ID,
		Date:       p.Date.Format("2006-01-02"),
		StoreID:    p.StoreID,
		TotalCents: p.Total.Cents,
		Payment:    string(p.Payment),
	}
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req saveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	saved, err := s.builder.Save(r.Context(), req.StoreID, date, core.PaymentMethod(req.Payment))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.overviewCache.Delete(overviewCacheKey)
	s.publishSync(r, saved.ID)
	writeJSON(w, http.StatusCreated, toPurchaseResponse(saved))
}

// handleFinishShopping closes out a trip in one request: the list's items
// are imported into the draft and the draft is saved. Equivalent to
// POST /api/draft/import followed by POST /api/draft/save.
func (s *Server) handleFinishShopping(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req saveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	if _, err := s.builder.ImportFromList(r.Context(), listID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	saved, err := s.builder.Save(r.Context(), req.StoreID, date, core.PaymentMethod(req.Payment))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.overviewCache.Delete(overviewCacheKey)
	s.publishSync(r, saved.ID)
	writeJSON(w, http.StatusCreated, toPurchaseResponse(saved))
}

// publishSync enqueues the spreadsheet export. Failures are logged only;
// the worker's pending sweep picks the purchase up either way.
func (s *Server) publishSync(r *http.Request, purchaseID int64) {
	if s.publisher == nil {
		return
	}
	ctx := r.Context()
	version, err := s.repo.SyncVersion(ctx, purchaseID)
	if err != nil {
		slog.WarnContext(ctx, "Sync version lookup failed, relying on sweep",
			"purchase_id", purchaseID, "error", err)
		return
	}
	if err := s.publisher.PublishPurchaseSync(ctx, purchaseID, version); err != nil {
		slog.WarnContext(ctx, "Sync publish failed, relying on sweep",
			"purchase_id", purchaseID, "error", err)
	}
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.repo.ListPurchases(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, toPurchaseResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type itemResponse struct {
	ID             int64   `json:"id"`
	PurchaseID     int64   `json:"purchase_id"`
	ProductName    string  `json:"product_name"`
	Brand          string  `json:"brand,omitempty"`
	Category       string  `json:"category,omitempty"`
	Weight         float64 `json:"weight"`
	Unit           string  `json:"unit"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	LineTotalCents int64   `json:"line_total_cents"`
	Promo          bool    `json:"promo"`
	Date           string  `json:"date"`
}

func toItemResponse(i core.PurchaseItem) itemResponse {
	return itemResponse{
		ID:             i.ID,
		PurchaseID:     i.PurchaseID,
		ProductName:    i.ProductName,
		Brand:          i.Brand,
		Category:       i.Category,
		Weight:         i.Weight,
		Unit:           string(i.Unit),
		UnitPriceCents: i.UnitPrice.Cents,
		LineTotalCents: core.LineTotalCents(i.UnitPrice.Cents, i.Weight),
		Promo:          i.Promo,
		Date:           i.Date.Format("2006-01-02"),
	}
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.repo.GetPurchase(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	items, err := s.repo.ItemsByPurchase(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := struct {
		purchaseResponse
		Items []itemResponse `json:"items"`
	}{purchaseResponse: toPurchaseResponse(p), Items: make([]itemResponse, 0, len(items))}
	for _, i := range items {
		out.Items = append(out.Items, toItemResponse(i))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeletePurchase(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.overviewCache.Delete(overviewCacheKey)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	query := sanitizeInput(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	items, err := s.repo.SearchItemsByName(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, i := range items {
		out = append(out, toItemResponse(i))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUpdateItem edits one line of a saved purchase. The package price is
// re-normalized to a unit price and the purchase total recomputed in
// storage.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := s.repo.GetPurchaseItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req draftItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cents, err := parseAmount(req.Price)
	if err != nil {
		writeDomainError(w, r, core.ErrInvalidAmount)
		return
	}
	weight := req.Weight
	if weight <= 0 {
		weight = 1
	}

	updated := core.PurchaseItem{
		ID:          existing.ID,
		PurchaseID:  existing.PurchaseID,
		ProductName: sanitizeInput(req.ProductName),
		Brand:       sanitizeInput(req.Brand),
		Category:    sanitizeInput(req.Category),
		Weight:      weight,
		Unit:        core.Unit(req.Unit),
		UnitPrice:   core.Money{Cents: core.UnitPriceCents(cents, weight)},
		Promo:       req.Promo,
		Date:        existing.Date,
	}
	if updated.Unit == "" {
		updated.Unit = existing.Unit
	}
	if err := updated.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	saved, err := s.repo.UpdatePurchaseItem(r.Context(), updated)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.overviewCache.Delete(overviewCacheKey)
	writeJSON(w, http.StatusOK, toItemResponse(saved))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeletePurchaseItem(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.overviewCache.Delete(overviewCacheKey)
	w.WriteHeader(http.StatusNoContent)
}
