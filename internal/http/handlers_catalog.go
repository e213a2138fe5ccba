package http

import (
	"net/http"
	"time"

	"feira/internal/core"
)

type storeRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type storeResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toStoreResponse(s core.Store) storeResponse {
	resp := storeResponse{ID: s.ID, Name: s.Name, Address: s.Address}
	if !s.CreatedAt.IsZero() {
		resp.CreatedAt = s.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.repo.ListStores(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]storeResponse, 0, len(stores))
	for _, st := range stores {
		out = append(out, toStoreResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	store := core.Store{Name: sanitizeInput(req.Name), Address: sanitizeInput(req.Address)}
	if err := store.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := s.repo.CreateStore(r.Context(), store)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoreResponse(created))
}

func (s *Server) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	store := core.Store{ID: id, Name: sanitizeInput(req.Name), Address: sanitizeInput(req.Address)}
	if err := store.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := s.repo.UpdateStore(r.Context(), store)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoreResponse(updated))
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeleteStore(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type productRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
}

type productResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

func toProductResponse(p core.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, Category: p.Category, Unit: string(p.Unit)}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.repo.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product := core.Product{
		Name:     sanitizeInput(req.Name),
		Category: sanitizeInput(req.Category),
		Unit:     core.Unit(req.Unit),
	}
	if err := product.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := s.repo.CreateProduct(r.Context(), product)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(created))
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product := core.Product{
		ID:       id,
		Name:     sanitizeInput(req.Name),
		Category: sanitizeInput(req.Category),
		Unit:     core.Unit(req.Unit),
	}
	if err := product.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := s.repo.UpdateProduct(r.Context(), product)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(updated))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeleteProduct(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		writeDomainError(w, r, core.ErrEmptyName)
		return
	}
	created, err := s.repo.CreateCategory(r.Context(), name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{ID: created.ID, Name: created.Name})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeleteCategory(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
