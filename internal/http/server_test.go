package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"feira/internal/storage"
)

type recordingPublisher struct {
	published []int64
}

func (p *recordingPublisher) PublishPurchaseSync(_ context.Context, id, version int64) error {
	p.published = append(p.published, id)
	return nil
}

func setupServer(t *testing.T) (*httptest.Server, *recordingPublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	pub := &recordingPublisher{}
	srv := NewServer(":0", repo, pub)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return ts, pub
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createStore(t *testing.T, ts *httptest.Server, name string) int64 {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores", map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create store: status %d", resp.StatusCode)
	}
	return decodeBody[storeResponse](t, resp).ID
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := setupServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
	}
}

func TestStoreLifecycle(t *testing.T) {
	ts, _ := setupServer(t)

	id := createStore(t, ts, "Mercado Central")

	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/stores/%d", ts.URL, id),
		map[string]string{"name": "Mercado Central", "address": "Rua A, 12"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update store: status %d", resp.StatusCode)
	}
	updated := decodeBody[storeResponse](t, resp)
	if updated.Address != "Rua A, 12" {
		t.Fatalf("address not updated: %+v", updated)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/stores", map[string]string{"name": "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("blank store name: status %d, want 422", resp.StatusCode)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	ts, _ := setupServer(t)

	// Seeding happens at bootstrap, not in the HTTP layer, so a fresh
	// server starts empty and accepts new categories.
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/categories", map[string]string{"name": "Congelados"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create category: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/categories")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	categories := decodeBody[[]categoryResponse](t, resp)
	if len(categories) != 1 || categories[0].Name != "Congelados" {
		t.Fatalf("unexpected categories: %+v", categories)
	}
}

func TestDraftSaveFlow(t *testing.T) {
	ts, pub := setupServer(t)
	storeID := createStore(t, ts, "Feira")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/draft/items", draftItemRequest{
		ProductName: "arroz", Price: "11,00", Weight: 2, Unit: "kg",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add item: status %d", resp.StatusCode)
	}
	line := decodeBody[lineResponse](t, resp)
	if line.UnitPriceCents != 550 || line.LineTotalCents != 1100 {
		t.Fatalf("normalization wrong: %+v", line)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/items", draftItemRequest{
		ProductName: "café", Brand: "Pilão", Price: "12,00", Promo: true,
	})
	resp.Body.Close()

	// Saving without a store must fail with the collected reasons and
	// leave the draft intact.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/save", saveDraftRequest{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("save without store: status %d, want 422", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/save", saveDraftRequest{
		StoreID: storeID, Date: "2025-03-10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save: status %d", resp.StatusCode)
	}
	saved := decodeBody[purchaseResponse](t, resp)
	if saved.TotalCents != 2300 {
		t.Fatalf("total = %d, want 2300", saved.TotalCents)
	}
	if saved.Payment != "va" {
		t.Fatalf("payment = %q, want default va", saved.Payment)
	}
	if len(pub.published) != 1 || pub.published[0] != saved.ID {
		t.Fatalf("sync not published: %v", pub.published)
	}

	// Draft resets after a successful save.
	resp, err := http.Get(ts.URL + "/api/draft")
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	draft := decodeBody[draftResponse](t, resp)
	if len(draft.Lines) != 0 || draft.TotalCents != 0 {
		t.Fatalf("draft not reset: %+v", draft)
	}

	resp, err = http.Get(fmt.Sprintf("%s/api/purchases/%d", ts.URL, saved.ID))
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	full := decodeBody[struct {
		purchaseResponse
		Items []itemResponse `json:"items"`
	}](t, resp)
	if len(full.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", full.Items)
	}
}

func TestPriceLookups(t *testing.T) {
	ts, _ := setupServer(t)
	storeID := createStore(t, ts, "Feira")

	for _, price := range []string{"10,00", "8,00"} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/draft/items", draftItemRequest{
			ProductName: "feijão", Price: price,
		})
		resp.Body.Close()
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/draft/save", saveDraftRequest{StoreID: storeID})
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/prices/lowest?product=feij%C3%A3o")
	if err != nil {
		t.Fatalf("lowest: %v", err)
	}
	cheapest := decodeBody[itemResponse](t, resp)
	if cheapest.UnitPriceCents != 800 {
		t.Fatalf("cheapest = %d, want 800", cheapest.UnitPriceCents)
	}

	resp, err = http.Get(ts.URL + "/api/prices/history?product=feij%C3%A3o")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	history := decodeBody[historyResponse](t, resp)
	if len(history.Items) != 2 {
		t.Fatalf("expected 2 history items, got %d", len(history.Items))
	}
	if history.Stats.LowestCents != 800 || history.Stats.HighestCents != 1000 {
		t.Fatalf("stats wrong: %+v", history.Stats)
	}

	// Short queries are rejected before touching storage.
	resp, err = http.Get(ts.URL + "/api/prices/lowest?product=ab")
	if err != nil {
		t.Fatalf("short query: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("short query: status %d, want 422", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/prices/lowest?product=inexistente")
	if err != nil {
		t.Fatalf("unknown product: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown product: status %d, want 404", resp.StatusCode)
	}
}

func TestShoppingListFlow(t *testing.T) {
	ts, _ := setupServer(t)
	storeID := createStore(t, ts, "Feira")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/lists", map[string]string{"name": "semanal"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create list: status %d", resp.StatusCode)
	}
	list := decodeBody[listResponse](t, resp)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/lists/%d/items", ts.URL, list.ID),
		listItemRequest{ProductName: "leite", Unit: "L"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create list item: status %d", resp.StatusCode)
	}
	item := decodeBody[listItemResponse](t, resp)

	// Tick the item in-store with its price.
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/list-items/%d", ts.URL, item.ID),
		listItemRequest{ProductName: "leite", Unit: "L", Checked: true, Price: "4,50"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update list item: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/import", map[string]int64{"list_id": list.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import list: status %d", resp.StatusCode)
	}
	imported := decodeBody[[]lineResponse](t, resp)
	if len(imported) != 1 || imported[0].Status != "priced" || imported[0].UnitPriceCents != 450 {
		t.Fatalf("import wrong: %+v", imported)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/save", saveDraftRequest{StoreID: storeID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save imported: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The consumed list is deleted by the save.
	resp, err := http.Get(fmt.Sprintf("%s/api/lists/%d", ts.URL, list.ID))
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("consumed list still exists: status %d", resp.StatusCode)
	}
}

func TestFinishShoppingEndpoint(t *testing.T) {
	ts, pub := setupServer(t)
	storeID := createStore(t, ts, "Feira")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/lists", map[string]string{"name": "sexta"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create list: status %d", resp.StatusCode)
	}
	list := decodeBody[listResponse](t, resp)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/lists/%d/items", ts.URL, list.ID),
		listItemRequest{ProductName: "ovos", Unit: "un", Checked: true, Price: "15,00"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create list item: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// One request replaces the import + save pair.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/lists/%d/finish", ts.URL, list.ID),
		saveDraftRequest{StoreID: storeID, Payment: "personal"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("finish shopping: status %d", resp.StatusCode)
	}
	saved := decodeBody[purchaseResponse](t, resp)
	if saved.TotalCents != 1500 || saved.Payment != "personal" {
		t.Fatalf("finished purchase wrong: %+v", saved)
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/lists/%d", ts.URL, list.ID))
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("consumed list still exists: status %d", resp.StatusCode)
	}
	resp, err = http.Get(ts.URL + "/api/draft")
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	draft := decodeBody[draftResponse](t, resp)
	if len(draft.Lines) != 0 {
		t.Fatalf("draft must be empty after finishing a trip, got %+v", draft.Lines)
	}
	if len(pub.published) != 1 || pub.published[0] != saved.ID {
		t.Fatalf("finish must enqueue the export, published = %v", pub.published)
	}

	// An unknown list leaves nothing behind.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/lists/999/finish",
		saveDraftRequest{StoreID: storeID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("finish unknown list: status %d, want 404", resp.StatusCode)
	}
}

func TestAllowanceEndpoints(t *testing.T) {
	ts, _ := setupServer(t)
	storeID := createStore(t, ts, "Feira")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/allowances",
		map[string]string{"month": "2025-03", "amount": "500,00"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record allowance: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/allowances",
		map[string]string{"month": "2025/03", "amount": "500,00"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad month key: status %d, want 422", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/items", draftItemRequest{
		ProductName: "arroz", Price: "120,00",
	})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/save", saveDraftRequest{StoreID: storeID})
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/allowances/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	status := decodeBody[struct {
		ReceivedCents  int64 `json:"received_cents"`
		SpentCents     int64 `json:"spent_cents"`
		BalanceCents   int64 `json:"balance_cents"`
		OverspendCents int64 `json:"overspend_cents"`
	}](t, resp)
	if status.ReceivedCents != 50000 || status.SpentCents != 12000 || status.BalanceCents != 38000 {
		t.Fatalf("status wrong: %+v", status)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	ts, _ := setupServer(t)
	storeID := createStore(t, ts, "Feira")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/draft/items", draftItemRequest{
		ProductName: "arroz", Category: "Mercearia", Price: "10,00",
	})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/draft/save",
		saveDraftRequest{StoreID: storeID, Date: "2025-03-10"})
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/dashboard")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	dash := decodeBody[dashboardResponse](t, resp)
	if dash.AllTimeTotalCents != 1000 {
		t.Fatalf("all-time total = %d, want 1000", dash.AllTimeTotalCents)
	}
	if len(dash.Monthly) != 1 || dash.Monthly[0].Month != "2025-03" {
		t.Fatalf("monthly wrong: %+v", dash.Monthly)
	}
	if len(dash.ByCategory) != 1 || dash.ByCategory[0].Name != "Alimentos" {
		t.Fatalf("macro grouping wrong: %+v", dash.ByCategory)
	}
	if len(dash.StoreRanking) != 1 || dash.StoreRanking[0].StoreName != "Feira" {
		t.Fatalf("store ranking wrong: %+v", dash.StoreRanking)
	}
}

func TestSaveInFlightConflictStatus(t *testing.T) {
	// The conflict mapping itself; the concurrency guard is covered in the
	// builder's own tests.
	ts, _ := setupServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/draft/save", saveDraftRequest{StoreID: 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty draft save: status %d, want 422", resp.StatusCode)
	}
}
