package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"gerenciador/internal/core"
	"gerenciador/internal/groups"
	"gerenciador/internal/middleware/ratelimit"
	"gerenciador/internal/middleware/trace"
	"gerenciador/internal/services"
	"gerenciador/internal/store/memory"
)

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := services.NewLedgerService(st, groups.Default(), nil, services.Options{
		Now: func() time.Time { return fixedNow },
	})
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv, st
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type createdBody struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get(trace.RequestIDHeader) == "" {
			t.Fatalf("%s missing request id header", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing security headers", path)
		}
	}
}

func TestGroups(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/groups", "", "")
	body := decode[map[string][]groups.Group](t, rr)
	if len(body["groups"]) != len(groups.Default().All()) {
		t.Fatalf("groups = %+v", body)
	}

	rr = do(t, srv, http.MethodGet, "/api/groups/nope/transactions", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown group status = %d", rr.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	const form = "application/x-www-form-urlencoded"

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"invalid amount", form, "group_key=contas_fixas&description=x&amount=abc", http.StatusUnprocessableEntity},
		{"missing description", form, "group_key=contas_fixas&description=&amount=1.23", http.StatusUnprocessableEntity},
		{"unknown group", form, "group_key=nope&description=x&amount=1.23", http.StatusUnprocessableEntity},
		{"bad date", form, "group_key=contas_fixas&description=x&amount=1&date=2024-02-30", http.StatusUnprocessableEntity},
		{"too many installments", form, "group_key=contas_fixas&description=x&amount=1&installments=61", http.StatusUnprocessableEntity},
		{"malformed json", "application/json", `{"group_key":`, http.StatusBadRequest},
		{"form ok", form, "group_key=contas_fixas&description=Aluguel&amount=1650,00&category=Moradia", http.StatusCreated},
		{"json ok", "application/json", `{"group_key":"receitas","description":"Salário","amount":5200,"date":"2024-06-05"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.contentType, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d, body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/api/transactions", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/transactions = %d, want 405", rr.Code)
	}
}

func TestCreateTransactionDefaultsAndCategory(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions", "application/json",
		`{"group_key":"contas_variaveis","description":"Feira","amount":"12.5","category":""}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[createdBody](t, rr).Transactions[0]
	if got.Date.String() != "2024-06-15" {
		t.Errorf("date defaulted to %s, want today", got.Date)
	}
	if got.Amount.Cents != 1250 {
		t.Errorf("amount = %d cents", got.Amount.Cents)
	}
	if got.Category == nil || *got.Category != "" {
		t.Errorf("JSON empty category should stay present, got %v", got.Category)
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "application/x-www-form-urlencoded",
		"group_key=contas_variaveis&description=Feira&amount=3&category=")
	if got := decode[createdBody](t, rr).Transactions[0]; got.Category != nil {
		t.Errorf("form empty category should be nil, got %q", *got.Category)
	}
}

func TestCreateRecurringTransaction(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions", "application/json",
		`{"group_key":"cartoes_credito","description":"Notebook","amount":"300","date":"2024-01-31","installments":3}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	body := decode[createdBody](t, rr)
	if body.Count != 3 {
		t.Fatalf("count = %d, want 3", body.Count)
	}
	wantDates := []string{"2024-02-29", "2024-03-31", "2024-04-30"}
	for i, tx := range body.Transactions {
		if tx.Date.String() != wantDates[i] {
			t.Errorf("installment %d date = %s, want %s", i+1, tx.Date, wantDates[i])
		}
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "application/json",
		`{"group_key":"contas_fixas","description":"Academia","amount":"90","date":"2024-01-10","recurrence":"monthly"}`)
	if got := decode[createdBody](t, rr).Count; got != 12 {
		t.Fatalf("monthly count = %d, want 12", got)
	}
}

func TestDeleteAndSetPaid(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	expense := decode[createdBody](t, do(t, srv, http.MethodPost, "/api/transactions", "application/json",
		`{"group_key":"contas_fixas","description":"Luz","amount":"80"}`)).Transactions[0]
	income := decode[createdBody](t, do(t, srv, http.MethodPost, "/api/transactions", "application/json",
		`{"group_key":"receitas","description":"Salário","amount":"5000"}`)).Transactions[0]

	path := func(id int64, suffix string) string {
		return "/api/transactions/" + strconv.FormatInt(id, 10) + suffix
	}

	rr := do(t, srv, http.MethodPost, path(expense.ID, "/paid"), "application/json", `{"paid":true}`)
	if rr.Code != http.StatusOK || !decode[core.Transaction](t, rr).IsPaid {
		t.Fatalf("set paid = %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPost, path(expense.ID, "/paid?paid=false"), "", "")
	if rr.Code != http.StatusOK || decode[core.Transaction](t, rr).IsPaid {
		t.Fatalf("unset paid = %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodPost, path(income.ID, "/paid"), "", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("paid on income = %d, want 422", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, path(expense.ID, ""), "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, path(expense.ID, ""), "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/transactions/abc", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", rr.Code)
	}
}

func TestSummariesAndQuery(t *testing.T) {
	srv, st := newTestServer(t, Options{})
	ctx := context.Background()
	seed := []core.Transaction{
		{GroupKey: "receitas", Date: core.NewDate(2023, 3, 5), Description: "Salário", Category: core.CategoryOf("Salário"), Amount: core.Money{Cents: 100000}},
		{GroupKey: "contas_fixas", Date: core.NewDate(2024, 6, 10), Description: "Aluguel", Category: core.CategoryOf("Moradia"), Amount: core.Money{Cents: 40000}},
		{GroupKey: "receitas", Date: core.NewDate(2024, 6, 1), Description: "Salário", Category: core.CategoryOf("Salário"), Amount: core.Money{Cents: 100000}},
	}
	if _, err := st.InsertMany(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	current := decode[map[string]any](t, do(t, srv, http.MethodGet, "/api/summary/current", "", ""))
	if current["balance"] != "600.00" {
		t.Errorf("current balance = %v, want 600.00", current["balance"])
	}

	annual := decode[annualResponse](t, do(t, srv, http.MethodGet, "/api/summary/annual?year=1990", "", ""))
	if annual.Year != 2023 {
		t.Errorf("year clamped to %d, want 2023", annual.Year)
	}
	if annual.CanPrevious || !annual.CanNext {
		t.Errorf("navigation = prev %v next %v", annual.CanPrevious, annual.CanNext)
	}
	if annual.Summary.Totals.Income.Cents != 100000 || annual.Summary.Months[2].Income.Cents != 100000 {
		t.Errorf("summary = %+v", annual.Summary.Totals)
	}
	if rr := do(t, srv, http.MethodGet, "/api/summary/annual?year=abc", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad year = %d", rr.Code)
	}

	years := decode[map[string][]int](t, do(t, srv, http.MethodGet, "/api/years", "", ""))
	if len(years["years"]) != 2 || years["years"][0] != 2024 {
		t.Errorf("years = %v", years)
	}

	rr := do(t, srv, http.MethodGet, "/api/query?start=2024-01-01&category=Sal%C3%A1rio", "", "")
	res := decode[map[string]any](t, rr)
	if res["count"] != float64(1) || res["total_income"] != "1000.00" {
		t.Errorf("query = %s", rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/api/query?group=nope", "", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown group = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/query?start=junk", "", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad start = %d", rr.Code)
	}

	cats := decode[map[string][]string](t, do(t, srv, http.MethodGet, "/api/categories", "", ""))
	if len(cats["categories"]) == 0 {
		t.Error("expected categories")
	}
}

func TestSchedulePreview(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/schedule?start=2024-01-31&count=2", "", "")
	body := decode[struct {
		Dates []core.Date `json:"dates"`
	}](t, rr)
	if len(body.Dates) != 2 || body.Dates[0].String() != "2024-02-29" || body.Dates[1].String() != "2024-03-31" {
		t.Fatalf("dates = %v", body.Dates)
	}
	if rr := do(t, srv, http.MethodGet, "/api/schedule?count=0", "", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("count=0 = %d, want 422", rr.Code)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimit: ratelimit.Config{
		RequestsPerMinute: 1,
		Methods:           []string{http.MethodPost},
	}})
	body := `{"group_key":"contas_fixas","description":"x","amount":"1"}`

	if rr := do(t, srv, http.MethodPost, "/api/transactions", "application/json", body); rr.Code != http.StatusCreated {
		t.Fatalf("first = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/transactions", "application/json", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/groups", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET should not be limited, got %d", rr.Code)
	}
}

func TestRefreshPicksUpOutsideChanges(t *testing.T) {
	srv, st := newTestServer(t, Options{})
	ctx := context.Background()

	first := decode[map[string]any](t, do(t, srv, http.MethodGet, "/api/summary/current", "", ""))
	if first["total_income"] != "0.00" {
		t.Fatalf("total_income = %v", first["total_income"])
	}

	// Written straight to the store, as another process would.
	_, err := st.InsertOne(ctx, core.Transaction{
		GroupKey: "receitas", Date: core.NewDate(2024, 6, 5), Description: "Freela", Amount: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	cached := decode[map[string]any](t, do(t, srv, http.MethodGet, "/api/summary/current", "", ""))
	if cached["total_income"] != "0.00" {
		t.Fatalf("expected cached totals, got %v", cached["total_income"])
	}

	rr := do(t, srv, http.MethodPost, "/api/refresh", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decode[struct {
		Refreshed bool           `json:"refreshed"`
		Summary   map[string]any `json:"summary"`
	}](t, rr)
	if !body.Refreshed || body.Summary["total_income"] != "500.00" {
		t.Fatalf("refresh body = %+v", body)
	}

	after := decode[map[string]any](t, do(t, srv, http.MethodGet, "/api/summary/current", "", ""))
	if after["total_income"] != "500.00" {
		t.Errorf("total_income after refresh = %v", after["total_income"])
	}
}
