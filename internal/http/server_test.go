package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneywise/internal/auth"
	"moneywise/internal/budget"
	"moneywise/internal/cache"
	"moneywise/internal/core"
	"moneywise/internal/ledger"
	"moneywise/internal/log"
	"moneywise/internal/storage"
	"moneywise/internal/storage/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testAPI struct {
	t   *testing.T
	srv *Server
}

type serverOption func(*Deps)

func newTestAPI(t *testing.T, opts ...serverOption) *testAPI {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	budgets := budget.New(st, cache.NewLRUCache[core.MonthBudget](32, time.Minute))
	deps := Deps{
		Store:    st,
		Ledger:   ledger.New(st, ledger.Config{}, budgets),
		Auditor:  ledger.NewAuditor(st, 2),
		Budgets:  budgets,
		Verifier: auth.NewVerifier(testSecret),
		Logger:   log.New(log.Config{Output: io.Discard, Format: "json"}),
		Now:      func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) },

		RateLimitPerMinute: 1000,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{t: t, srv: srv}
}

func token(t *testing.T, user core.UserID) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, user, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends body (if any) as user; user 0 sends no Authorization header.
func (a *testAPI) do(method, path string, user core.UserID, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set("Authorization", "Bearer "+token(a.t, user))
	}
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type apiError struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

type walletJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type idJSON struct {
	ID int64 `json:"id"`
}

func (a *testAPI) create(path string, user core.UserID, body string) int64 {
	a.t.Helper()
	rec := a.do(http.MethodPost, path, user, body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[idJSON](a.t, rec).ID
}

func (a *testAPI) balance(user core.UserID, walletID int64) string {
	a.t.Helper()
	rec := a.do(http.MethodGet, fmt.Sprintf("/api/wallets/%d", walletID), user, "")
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[walletJSON](a.t, rec).Balance
}

const (
	alice core.UserID = 1
	bob   core.UserID = 2
)

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := api.do(http.MethodGet, path, 0, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

type downStore struct{ storage.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsUnavailableStore(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.Store = downStore{d.Store} })

	rec := api.do(http.MethodGet, "/readyz", 0, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIRequiresValidToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/wallets", 0, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[apiError](t, rec)
	assert.Equal(t, "unauthorized", body.Error.Kind)
	assert.Equal(t, "missing token", body.Error.Message)

	forged, err := auth.Sign("another-secret-another-secret-123", alice, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/wallets", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decode[apiError](t, rec).Error.Message)
}

func TestTransactionLifecycle(t *testing.T) {
	api := newTestAPI(t)

	wallet := api.create("/api/wallets", alice, `{"name":"Checking","opening_balance":"100.00"}`)
	food := api.create("/api/categories", alice, `{"name":"Food","type":"expense"}`)

	rec := api.do(http.MethodPost, "/api/transactions", alice, fmt.Sprintf(
		`{"wallet_id":%d,"category_id":%d,"amount":"25.50","date":"2024-03-02","description":"groceries"}`, wallet, food))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Transaction idJSON       `json:"transaction"`
		Wallets     []walletJSON `json:"wallets"`
	}](t, rec)
	require.Len(t, created.Wallets, 1)
	assert.Equal(t, "74.50", created.Wallets[0].Balance)

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/transactions?wallet_id=%d", wallet), alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]idJSON](t, rec), 1)

	txPath := fmt.Sprintf("/api/transactions/%d", created.Transaction.ID)
	rec = api.do(http.MethodPatch, txPath, alice, `{"amount":30}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "70.00", api.balance(alice, wallet))

	rec = api.do(http.MethodDelete, txPath, alice, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "100.00", decode[struct {
		Wallet walletJSON `json:"wallet"`
	}](t, rec).Wallet.Balance)

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/wallets/%d/audit", wallet), alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[core.WalletAudit](t, rec)
	assert.True(t, audit.Consistent)
	assert.Equal(t, 0, audit.TransactionCount)

	rec = api.do(http.MethodGet, txPath, alice, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransferEndpoint(t *testing.T) {
	api := newTestAPI(t)

	from := api.create("/api/wallets", alice, `{"name":"Checking","opening_balance":"100"}`)
	to := api.create("/api/wallets", alice, `{"name":"Savings"}`)

	rec := api.do(http.MethodPost, "/api/transfers", alice, fmt.Sprintf(
		`{"from_wallet_id":%d,"to_wallet_id":%d,"amount":"40","date":"2024-03-03"}`, from, to))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[struct {
		From walletJSON `json:"from_wallet"`
		To   walletJSON `json:"to_wallet"`
	}](t, rec)
	assert.Equal(t, "60.00", res.From.Balance)
	assert.Equal(t, "40.00", res.To.Balance)

	rec = api.do(http.MethodPost, "/api/transfers", alice, fmt.Sprintf(
		`{"from_wallet_id":%d,"to_wallet_id":%d,"amount":"100","date":"2024-03-03"}`, from, to))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[apiError](t, rec).Error.Message, "insufficient funds")

	rec = api.do(http.MethodPost, "/api/transfers", alice, fmt.Sprintf(
		`{"from_wallet_id":%d,"to_wallet_id":%d,"amount":"1","date":"2024-03-03"}`, from, from))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, "60.00", api.balance(alice, from))
}

func TestErrorTranslation(t *testing.T) {
	api := newTestAPI(t)
	wallet := api.create("/api/wallets", alice, `{"name":"Checking"}`)
	food := api.create("/api/categories", alice, `{"name":"Food","type":"expense"}`)
	api.create("/api/transactions", alice, fmt.Sprintf(
		`{"wallet_id":%d,"category_id":%d,"amount":"5","date":"2024-03-02"}`, wallet, food))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"malformed json", http.MethodPost, "/api/wallets", `{"name":`, http.StatusBadRequest, "malformed"},
		{"empty body", http.MethodPost, "/api/wallets", "", http.StatusBadRequest, "malformed"},
		{"unknown field", http.MethodPost, "/api/wallets", `{"name":"x","balance":"5"}`, http.StatusBadRequest, "malformed"},
		{"too many decimals", http.MethodPost, "/api/transactions",
			fmt.Sprintf(`{"wallet_id":%d,"category_id":%d,"amount":"1.234","date":"2024-03-02"}`, wallet, food),
			http.StatusUnprocessableEntity, "validation"},
		{"bad date", http.MethodPost, "/api/transactions",
			fmt.Sprintf(`{"wallet_id":%d,"category_id":%d,"amount":"1","date":"2024-13-02"}`, wallet, food),
			http.StatusUnprocessableEntity, "validation"},
		{"bad category type", http.MethodPost, "/api/categories", `{"name":"Misc","type":"other"}`, http.StatusUnprocessableEntity, "validation"},
		{"duplicate category", http.MethodPost, "/api/categories", `{"name":"Food","type":"expense"}`, http.StatusConflict, "conflict"},
		{"category in use", http.MethodDelete, fmt.Sprintf("/api/categories/%d", food), "", http.StatusConflict, "conflict"},
		{"missing wallet", http.MethodGet, "/api/wallets/999", "", http.StatusNotFound, "not_found"},
		{"non numeric id", http.MethodGet, "/api/wallets/abc", "", http.StatusNotFound, "not_found"},
		{"bad wallet filter", http.MethodGet, "/api/transactions?wallet_id=x", "", http.StatusUnprocessableEntity, "validation"},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, alice, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[apiError](t, rec)
			assert.Equal(t, tt.kind, body.Error.Kind)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPut, "/api/transfers", alice, "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUsersCannotSeeEachOthersRows(t *testing.T) {
	api := newTestAPI(t)
	wallet := api.create("/api/wallets", alice, `{"name":"Checking","opening_balance":"10"}`)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, fmt.Sprintf("/api/wallets/%d", wallet), bob, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, fmt.Sprintf("/api/wallets/%d", wallet), bob, "").Code)

	rec := api.do(http.MethodGet, "/api/wallets", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestWalletRenameAndDelete(t *testing.T) {
	api := newTestAPI(t)
	wallet := api.create("/api/wallets", alice, `{"name":"Checking","opening_balance":"10"}`)
	path := fmt.Sprintf("/api/wallets/%d", wallet)

	rec := api.do(http.MethodPatch, path, alice, `{"name":"  Main  "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	renamed := decode[walletJSON](t, rec)
	assert.Equal(t, "Main", renamed.Name)
	assert.Equal(t, "10.00", renamed.Balance)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, path, alice, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, path, alice, "").Code)
}

func TestBudgetEndpoints(t *testing.T) {
	api := newTestAPI(t)
	wallet := api.create("/api/wallets", alice, `{"name":"Checking","opening_balance":"500"}`)
	food := api.create("/api/categories", alice, `{"name":"Food","type":"expense"}`)

	id := api.create("/api/budgets", alice, fmt.Sprintf(`{"category_id":%d,"amount":"100","month":3,"year":2024}`, food))
	api.create("/api/transactions", alice, fmt.Sprintf(
		`{"wallet_id":%d,"category_id":%d,"amount":"120","date":"2024-03-05"}`, wallet, food))

	type statusJSON struct {
		Year     int    `json:"year"`
		Month    int    `json:"month"`
		Spent    string `json:"spent"`
		Statuses []struct {
			CategoryName string `json:"category_name"`
			Remaining    string `json:"remaining"`
			Exceeded     bool   `json:"exceeded"`
		} `json:"statuses"`
	}

	// No period given: the current month according to the server clock.
	rec := api.do(http.MethodGet, "/api/budgets/status", alice, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := decode[statusJSON](t, rec)
	assert.Equal(t, 2024, status.Year)
	assert.Equal(t, 3, status.Month)
	assert.Equal(t, "120.00", status.Spent)
	require.Len(t, status.Statuses, 1)
	assert.Equal(t, "Food", status.Statuses[0].CategoryName)
	assert.Equal(t, "-20.00", status.Statuses[0].Remaining)
	assert.True(t, status.Statuses[0].Exceeded)

	rec = api.do(http.MethodPut, fmt.Sprintf("/api/budgets/%d", id), alice,
		fmt.Sprintf(`{"category_id":%d,"amount":"150","month":3,"year":2024}`, food))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/budgets/status?year=2024&month=3", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status = decode[statusJSON](t, rec)
	require.Len(t, status.Statuses, 1)
	assert.False(t, status.Statuses[0].Exceeded)

	rec = api.do(http.MethodGet, "/api/budgets/status?year=2024&month=4", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[statusJSON](t, rec).Statuses)

	rec = api.do(http.MethodGet, "/api/budgets?year=2024", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]idJSON](t, rec), 1)

	for _, q := range []string{"month=13", "month=abc", "year=1999"} {
		rec = api.do(http.MethodGet, "/api/budgets/status?"+q, alice, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, fmt.Sprintf("/api/budgets/%d", id), alice, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, fmt.Sprintf("/api/budgets/%d", id), alice, "").Code)
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/wallets", alice, "").Code)
	}
	rec := api.do(http.MethodGet, "/api/wallets", alice, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[apiError](t, rec).Error.Kind)

	// Probes are not counted against the API budget.
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", 0, "").Code)
}

func TestShutdownIsIdempotent(t *testing.T) {
	api := newTestAPI(t)

	require.NoError(t, api.srv.Shutdown(context.Background()))
	assert.NoError(t, api.srv.Shutdown(context.Background()))
}
