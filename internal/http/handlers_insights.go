package http

import (
	"net/http"

	"feira/internal/core"
	"feira/internal/pricing"
)

func (s *Server) handleLowestPrice(w http.ResponseWriter, r *http.Request) {
	product := sanitizeInput(r.URL.Query().Get("product"))
	brand := sanitizeInput(r.URL.Query().Get("brand"))

	item, err := s.prices.LowestPrice(r.Context(), product, brand)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "no price recorded for product")
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(*item))
}

type historyResponse struct {
	Items []itemResponse `json:"items"`
	Stats struct {
		LowestCents  int64   `json:"lowest_cents"`
		HighestCents int64   `json:"highest_cents"`
		Variation    float64 `json:"variation_pct"`
	} `json:"stats"`
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	product := sanitizeInput(r.URL.Query().Get("product"))

	items, err := s.prices.ProductHistory(r.Context(), product)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := historyResponse{Items: make([]itemResponse, 0, len(items))}
	for _, i := range items {
		out.Items = append(out.Items, toItemResponse(i))
	}
	stats := pricing.Stats(items)
	out.Stats.LowestCents = stats.Lowest.Cents
	out.Stats.HighestCents = stats.Highest.Cents
	out.Stats.Variation = stats.Variation
	writeJSON(w, http.StatusOK, out)
}

type dashboardResponse struct {
	AllTimeTotalCents int64                `json:"all_time_total_cents"`
	Monthly           []monthTotalJSON     `json:"monthly"`
	ByCategory        []categoryTotalJSON  `json:"by_category"`
	StoreRanking      []storeStatJSON      `json:"store_ranking"`
	InflationRate     float64              `json:"inflation_rate_pct"`
}

type monthTotalJSON struct {
	Month      string `json:"month"`
	TotalCents int64  `json:"total_cents"`
}

type categoryTotalJSON struct {
	Name       string `json:"name"`
	TotalCents int64  `json:"total_cents"`
}

type storeStatJSON struct {
	StoreID      int64  `json:"store_id"`
	StoreName    string `json:"store_name"`
	Count        int    `json:"count"`
	TotalCents   int64  `json:"total_cents"`
	AverageCents int64  `json:"average_cents"`
}

const overviewCacheKey = "overview"

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ov, cached := s.overviewCache.Get(overviewCacheKey)
	if !cached {
		var err error
		ov, err = s.dashboard.Overview(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		s.overviewCache.Set(overviewCacheKey, ov)
	}

	out := dashboardResponse{
		AllTimeTotalCents: ov.AllTimeTotal.Cents,
		Monthly:           make([]monthTotalJSON, 0, len(ov.Monthly)),
		ByCategory:        make([]categoryTotalJSON, 0, len(ov.ByCategory)),
		StoreRanking:      make([]storeStatJSON, 0, len(ov.StoreRanking)),
		InflationRate:     ov.InflationRate,
	}
	for _, m := range ov.Monthly {
		out.Monthly = append(out.Monthly, monthTotalJSON{Month: m.MonthKey, TotalCents: m.Total.Cents})
	}
	for _, c := range ov.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalJSON{Name: c.Name, TotalCents: c.Total.Cents})
	}
	for _, st := range ov.StoreRanking {
		out.StoreRanking = append(out.StoreRanking, storeStatJSON{
			StoreID:      st.StoreID,
			StoreName:    st.StoreName,
			Count:        st.Count,
			TotalCents:   st.Total.Cents,
			AverageCents: st.Average.Cents,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type allowanceResponse struct {
	ID          int64  `json:"id"`
	Month       string `json:"month"`
	AmountCents int64  `json:"amount_cents"`
}

func toAllowanceResponse(a core.MealAllowance) allowanceResponse {
	return allowanceResponse{ID: a.ID, Month: a.MonthKey, AmountCents: a.Amount.Cents}
}

func (s *Server) handleListAllowances(w http.ResponseWriter, r *http.Request) {
	allowances, err := s.ledger.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]allowanceResponse, 0, len(allowances))
	for _, a := range allowances {
		out = append(out, toAllowanceResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecordAllowance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month  string `json:"month"`  // "YYYY-MM"
		Amount string `json:"amount"` // decimal string
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cents, err := parseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, r, core.ErrInvalidAmount)
		return
	}
	recorded, err := s.ledger.Record(r.Context(), sanitizeInput(req.Month), cents)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllowanceResponse(recorded))
}

func (s *Server) handleAllowanceStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.Status(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ReceivedCents  int64 `json:"received_cents"`
		SpentCents     int64 `json:"spent_cents"`
		BalanceCents   int64 `json:"balance_cents"`
		OverspendCents int64 `json:"overspend_cents"`
	}{
		ReceivedCents:  status.Received.Cents,
		SpentCents:     status.Spent.Cents,
		BalanceCents:   status.Balance.Cents,
		OverspendCents: status.Overspend.Cents,
	})
}
