package http

import (
	"net/http"

	"feira/internal/core"
)

type listResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func toListResponse(l core.ShoppingList) listResponse {
	return listResponse{ID: l.ID, Name: l.Name, Status: string(l.Status)}
}

type listItemRequest struct {
	ProductName string `json:"product_name"`
	Brand       string `json:"brand"`
	Unit        string `json:"unit"`
	Checked     bool   `json:"checked"`
	Price       string `json:"price"` // captured in-store, optional
}

type listItemResponse struct {
	ID          int64  `json:"id"`
	ListID      int64  `json:"list_id"`
	ProductName string `json:"product_name"`
	Brand       string `json:"brand,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Checked     bool   `json:"checked"`
	PriceCents  int64  `json:"price_cents,omitempty"`
}

func toListItemResponse(i core.ShoppingListItem) listItemResponse {
	return listItemResponse{
		ID:          i.ID,
		ListID:      i.ListID,
		ProductName: i.ProductName,
		Brand:       i.Brand,
		Unit:        string(i.Unit),
		Checked:     i.Checked,
		PriceCents:  i.Price.Cents,
	}
}

func (req listItemRequest) toItem() (core.ShoppingListItem, error) {
	item := core.ShoppingListItem{
		ProductName: sanitizeInput(req.ProductName),
		Brand:       sanitizeInput(req.Brand),
		Unit:        core.Unit(req.Unit),
		Checked:     req.Checked,
	}
	if item.ProductName == "" {
		return core.ShoppingListItem{}, core.ErrEmptyProduct
	}
	if item.Unit != "" && !item.Unit.Valid() {
		return core.ShoppingListItem{}, core.ErrInvalidUnit
	}
	if req.Price != "" {
		cents, err := parseAmount(req.Price)
		if err != nil {
			return core.ShoppingListItem{}, core.ErrInvalidAmount
		}
		item.Price = core.Money{Cents: cents}
	}
	return item, nil
}

func (s *Server) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.repo.ListShoppingLists(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]listResponse, 0, len(lists))
	for _, l := range lists {
		out = append(out, toListResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	list := core.ShoppingList{Name: sanitizeInput(req.Name), Status: core.ListActive}
	if err := list.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := s.repo.CreateShoppingList(r.Context(), list)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListResponse(created))
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.repo.GetShoppingList(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	items, err := s.repo.ItemsByList(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := struct {
		listResponse
		Items []listItemResponse `json:"items"`
	}{listResponse: toListResponse(list), Items: make([]listItemResponse, 0, len(items))}
	for _, i := range items {
		out.Items = append(out.Items, toListItemResponse(i))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeleteShoppingList(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateListItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.repo.GetShoppingList(r.Context(), listID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req listItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := req.toItem()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	item.ListID = listID
	created, err := s.repo.CreateListItem(r.Context(), item)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListItemResponse(created))
}

// handleUpdateListItem is how in-store ticking works: mark the item checked
// and capture the price paid.
func (s *Server) handleUpdateListItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := s.repo.GetListItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req listItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := req.toItem()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	item.ID = existing.ID
	item.ListID = existing.ListID
	updated, err := s.repo.UpdateListItem(r.Context(), item)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListItemResponse(updated))
}

func (s *Server) handleDeleteListItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeleteListItem(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
