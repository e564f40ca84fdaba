package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seva-invoicing/internal/adapters/web"
	"seva-invoicing/internal/app"
	"seva-invoicing/internal/core"
	"seva-invoicing/internal/logger"
	"seva-invoicing/internal/render"
	"seva-invoicing/internal/store"
)

func init() {
	logger.Discard()
}

const (
	adminEmail    = "admin@seva.example"
	adminPassword = "correct horse"
)

func newTestHandler(t *testing.T, creds app.AdminCredentials) http.Handler {
	t.Helper()
	return newHandlerWithStore(t, store.NewMemory(), creds)
}

func newHandlerWithStore(t *testing.T, s core.RecordStore, creds app.AdminCredentials) http.Handler {
	t.Helper()
	seq := core.NewSequencer(s, core.FormatMonthly)
	svc := app.NewAppService(
		core.NewInvoiceService(s, seq, time.UTC),
		core.NewReportingService(s, time.UTC),
		render.New(render.Company{Name: "Seva Auto Sales"}, time.Second),
		app.Options{
			Credentials:  creds,
			Location:     time.UTC,
			NumberFormat: core.FormatMonthly,
			MockMode:     true,
		},
	)
	return web.NewHandler(svc, web.Options{JWTSecret: "test-secret"})
}

func defaultCreds() app.AdminCredentials {
	return app.AdminCredentials{Email: adminEmail, Password: adminPassword}
}

func do(t *testing.T, h http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/auth/login",
		map[string]string{"email": adminEmail, "password": adminPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth_token" {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id"`
	Fields    map[string]string `json:"fields"`
}

type invoiceBody struct {
	Invoice  core.Invoice `json:"invoice"`
	Category string       `json:"category"`
}

func invoicePayload(draftID, number, name string) map[string]any {
	return map[string]any{
		"draft_id":       draftID,
		"invoice_number": number,
		"invoice_date":   "2025-06-15",
		"customer_name":  name,
		"customer_phone": "9000000001",
		"car_model":      "Activa 6G",
		"reg_no":         "KA01AB1234",
		"items": []map[string]any{
			{"description": "Side wheel attachment", "mrp": "16000", "selling_price": "15000", "amount": "15000"},
		},
		"total_amount": "15000",
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, defaultCreds())

	rec := do(t, h, http.MethodGet, "/api/health", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[app.HealthResult](t, rec)
	assert.Equal(t, "ok", res.Status)
	assert.True(t, res.MockMode)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth_APIRequiresSession(t *testing.T) {
	h := newTestHandler(t, defaultCreds())

	rec := do(t, h, http.MethodGet, "/api/invoices", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[errorBody](t, rec).Code)

	forged := &http.Cookie{Name: "auth_token", Value: "not-a-jwt"}
	rec = do(t, h, http.MethodGet, "/api/invoices", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_BrowserRedirects(t *testing.T) {
	h := newTestHandler(t, defaultCreds())

	rec := do(t, h, http.MethodGet, "/history", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/login"`)

	cookie := login(t, h)
	rec = do(t, h, http.MethodGet, "/login", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/history", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="view"`)
}

func TestAuth_Login(t *testing.T) {
	h := newTestHandler(t, defaultCreds())

	cookie := login(t, h)
	assert.True(t, cookie.HttpOnly)

	rec := do(t, h, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, adminEmail, decode[map[string]string](t, rec)["email"])

	rec = do(t, h, http.MethodPost, "/api/auth/login",
		map[string]string{"email": adminEmail, "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid Admin ID or Password", decode[errorBody](t, rec).Error)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuth_LoginWithoutConfiguredCredentials(t *testing.T) {
	h := newTestHandler(t, app.AdminCredentials{})

	rec := do(t, h, http.MethodPost, "/api/auth/login",
		map[string]string{"email": adminEmail, "password": adminPassword}, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "AUTH_NOT_CONFIGURED", decode[errorBody](t, rec).Code)
}

func TestAuth_LoginForm(t *testing.T) {
	h := newTestHandler(t, defaultCreds())

	post := func(password string) *httptest.ResponseRecorder {
		form := "email=" + adminEmail + "&password=" + strings.ReplaceAll(password, " ", "+")
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post("nope")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?error=invalid", rec.Header().Get("Location"))

	rec = post(adminPassword)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestInvoices_DraftCreateAndReplay(t *testing.T) {
	h := newTestHandler(t, defaultCreds())
	cookie := login(t, h)

	rec := do(t, h, http.MethodGet, "/api/invoices/draft", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode[core.Draft](t, rec)
	require.NotEmpty(t, draft.DraftID)
	require.NotEmpty(t, draft.Invoice.InvoiceNumber)

	payload := invoicePayload(draft.DraftID, draft.Invoice.InvoiceNumber, "Ravi Kumar")
	rec = do(t, h, http.MethodPost, "/api/invoices", payload, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[invoiceBody](t, rec)
	require.NotEmpty(t, created.Invoice.ID)
	assert.Equal(t, "/api/invoices/"+created.Invoice.ID, rec.Header().Get("Location"))
	assert.True(t, decimal.NewFromInt(15000).Equal(created.Invoice.TotalAmount))

	// A second submit of the same draft returns the saved invoice.
	rec = do(t, h, http.MethodPost, "/api/invoices", payload, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Invoice.ID, decode[invoiceBody](t, rec).Invoice.ID)

	rec = do(t, h, http.MethodGet, "/api/invoices", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[app.InvoiceListResult](t, rec)
	assert.Equal(t, 1, list.Total)

	rec = do(t, h, http.MethodGet, "/api/invoices/"+created.Invoice.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ravi Kumar", decode[invoiceBody](t, rec).Invoice.CustomerName)
}

func TestInvoices_ValidationErrorListsFields(t *testing.T) {
	h := newTestHandler(t, defaultCreds())
	cookie := login(t, h)

	payload := invoicePayload("", "250601", "")
	delete(payload, "reg_no")
	rec := do(t, h, http.MethodPost, "/api/invoices", payload, cookie)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.Contains(t, body.Fields, "customer_name")
	assert.Contains(t, body.Fields, "reg_no")
	assert.NotEmpty(t, body.RequestID)
}

func TestInvoices_RejectsMalformedJSON(t *testing.T) {
	h := newTestHandler(t, defaultCreds())
	cookie := login(t, h)

	req := httptest.NewRequest(http.MethodPost, "/api/invoices", strings.NewReader("{"))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoices_SearchAndPaging(t *testing.T) {
	h := newTestHandler(t, defaultCreds())
	cookie := login(t, h)

	for i, name := range []string{"Ravi Kumar", "Anita Rao", "Ravindra Shetty"} {
		number := "25060" + string(rune('1'+i))
		rec := do(t, h, http.MethodPost, "/api/invoices", invoicePayload("", number, name), cookie)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/api/invoices?q=ravi", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[app.InvoiceListResult](t, rec)
	assert.Equal(t, 2, list.Total)
	assert.False(t, list.HasMore)

	rec = do(t, h, http.MethodGet, "/api/invoices?page=-1", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/invoices?page=99999999999999999999", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/invoices?page="+strconv.Itoa(core.MaxHistoryPage+1), nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/invoices?page="+strconv.Itoa(core.MaxHistoryPage), nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	far := decode[app.InvoiceListResult](t, rec)
	assert.Empty(t, far.Invoices)
	assert.Equal(t, 3, far.Total)

	rec = do(t, h, http.MethodGet, "/api/invoices?sort=amount", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/invoices/recent?limit=2", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	recent := decode[map[string][]core.Invoice](t, rec)
	assert.Len(t, recent["invoices"], 2)
}

func TestInvoices_PDFDownload(t *testing.T) {
	h := newTestHandler(t, defaultCreds())
	cookie := login(t, h)

	rec := do(t, h, http.MethodPost, "/api/invoices", invoicePayload("", "250601", "Ravi Kumar"), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[invoiceBody](t, rec).Invoice.ID

	rec = do(t, h, http.MethodGet, "/api/invoices/"+id+"/pdf", nil, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="250601.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = do(t, h, http.MethodGet, "/api/invoices/missing/pdf", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoices_Delete(t *testing.T) {
	h := newTestHandler(t, defaultCreds())
	cookie := login(t, h)

	payload := invoicePayload("draft-1", "250601", "Ravi Kumar")
	rec := do(t, h, http.MethodPost, "/api/invoices", payload, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[invoiceBody](t, rec).Invoice.ID

	rec = do(t, h, http.MethodDelete, "/api/invoices/"+id, nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/invoices/"+id, nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Code)

	// The deleted draft is no longer replayed; resubmitting saves it again.
	rec = do(t, h, http.MethodPost, "/api/invoices", payload, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEqual(t, id, decode[invoiceBody](t, rec).Invoice.ID)
}

func TestAnalytics(t *testing.T) {
	h := newTestHandler(t, defaultCreds())
	cookie := login(t, h)

	rec := do(t, h, http.MethodPost, "/api/invoices", invoicePayload("", "250601", "Ravi Kumar"), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/analytics?mode=month&date=2025-06-20", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[core.Report](t, rec)
	assert.Equal(t, core.ViewMonth, report.Mode)
	assert.Len(t, report.Buckets, 6)
	assert.True(t, decimal.NewFromInt(15000).Equal(report.Total), report.Total.String())
	assert.Equal(t, 1, report.InvoiceCount)

	rec = do(t, h, http.MethodGet, "/api/analytics?mode=year", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/analytics?date=15-06-2025", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	s := store.NewMemory()
	seq := core.NewSequencer(s, core.FormatMonthly)
	svc := app.NewAppService(
		core.NewInvoiceService(s, seq, time.UTC),
		core.NewReportingService(s, time.UTC),
		render.New(render.Company{Name: "Seva Auto Sales"}, time.Second),
		app.Options{},
	)
	h := web.NewHandler(svc, web.Options{AllowedOrigins: "https://seva.example", JWTSecret: "x"})

	req := httptest.NewRequest(http.MethodOptions, "/api/invoices", nil).WithContext(context.Background())
	req.Header.Set("Origin", "https://seva.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://seva.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// slowStore delays inserts so concurrent submits overlap.
type slowStore struct {
	*store.File
	delay time.Duration
}

func (s slowStore) Insert(ctx context.Context, rows []core.Invoice) ([]core.Invoice, error) {
	time.Sleep(s.delay)
	return s.File.Insert(ctx, rows)
}

func TestInvoices_ConcurrentSubmitsOfOneDraftInsertOnce(t *testing.T) {
	mem := store.NewMemory()
	h := newHandlerWithStore(t, slowStore{File: mem, delay: 5 * time.Millisecond}, defaultCreds())
	cookie := login(t, h)

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(invoicePayload("draft-race", "250601", "Ravi Kumar")))
	payload := body.Bytes()

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	const workers = 8
	codes := make([]int, 0, workers*4)
	var mu sync.Mutex
	var wg sync.WaitGroup
	deadline := time.Now().Add(30 * time.Millisecond)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				code := post()
				mu.Lock()
				codes = append(codes, code)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusOK, http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, created)

	res, err := mem.Select(context.Background(), core.NewQuery().WithCount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	assert.Equal(t, http.StatusOK, post())
}

var errStoreDown = errors.New("store unavailable")

// failingStore fails every read, and every write when failWrites is set.
type failingStore struct {
	*store.File
	failWrites bool
}

func (s failingStore) Select(context.Context, *core.Query) (core.QueryResult, error) {
	return core.QueryResult{}, errStoreDown
}

func (s failingStore) Single(context.Context, *core.Query) (*core.Invoice, error) {
	return nil, errStoreDown
}

func (s failingStore) Insert(ctx context.Context, rows []core.Invoice) ([]core.Invoice, error) {
	if s.failWrites {
		return nil, errStoreDown
	}
	return s.File.Insert(ctx, rows)
}

func TestReadsDegradeWhenStoreFails(t *testing.T) {
	h := newHandlerWithStore(t, failingStore{File: store.NewMemory()}, defaultCreds())
	cookie := login(t, h)

	rec := do(t, h, http.MethodGet, "/api/invoices?q=ravi", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[app.InvoiceListResult](t, rec)
	assert.NotNil(t, list.Invoices)
	assert.Empty(t, list.Invoices)
	assert.Zero(t, list.Total)

	rec = do(t, h, http.MethodGet, "/api/invoices/recent", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"invoices": []}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/analytics?mode=week", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[core.Report](t, rec)
	assert.Equal(t, core.ViewWeek, report.Mode)
	assert.Empty(t, report.Buckets)
	assert.True(t, report.Total.IsZero())

	// Bad input is still rejected rather than degraded.
	rec = do(t, h, http.MethodGet, "/api/analytics?mode=year", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Lookups are not list views: a failing read is a server error.
	rec = do(t, h, http.MethodGet, "/api/invoices/some-id", nil, cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInvoices_FailedSaveIsNotReplayed(t *testing.T) {
	mem := store.NewMemory()
	broken := newHandlerWithStore(t, failingStore{File: mem, failWrites: true}, defaultCreds())
	cookie := login(t, broken)

	payload := invoicePayload("draft-retry", "250601", "Ravi Kumar")
	rec := do(t, broken, http.MethodPost, "/api/invoices", payload, cookie)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Contains(t, body.Error, "store unavailable")

	// The failed draft was released, so the retry reaches the store again.
	rec = do(t, broken, http.MethodPost, "/api/invoices", payload, cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	res, err := mem.Select(context.Background(), core.NewQuery().WithCount())
	require.NoError(t, err)
	assert.Zero(t, res.Count)
}

func TestRecovererReturnsJSONError(t *testing.T) {
	h := web.RequestID(web.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
}
