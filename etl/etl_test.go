package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledgerline.com/xerobi/auth"
	"ledgerline.com/xerobi/pg/model"
	"ledgerline.com/xerobi/xero"
)

type fakeStore struct {
	connections []model.Connection
	listErr     error
	cache       map[string]*model.DataCache // keyed user|date
}

func newFakeStore(connections ...model.Connection) *fakeStore {
	return &fakeStore{
		connections: connections,
		cache:       make(map[string]*model.DataCache),
	}
}

func (s *fakeStore) ListConnections(ctx context.Context) ([]model.Connection, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.connections, nil
}

func (s *fakeStore) UpsertDataCache(ctx context.Context, row *model.DataCache) error {
	copied := *row
	s.cache[row.UserID.String()+"|"+row.Date.Format("2006-01-02")] = &copied
	return nil
}

func (s *fakeStore) GetConnectionByID(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	return nil, &model.NotFoundError{Entity: "connection"}
}

func (s *fakeStore) GetConnectionByUserID(ctx context.Context, userID uuid.UUID) (*model.Connection, error) {
	return nil, &model.NotFoundError{Entity: "connection"}
}

func (s *fakeStore) UpsertConnection(ctx context.Context, conn *model.Connection) error { return nil }

func (s *fakeStore) UpdateRefreshToken(ctx context.Context, id uuid.UUID, encryptedToken string, refreshedAt time.Time) error {
	return nil
}

func (s *fakeStore) TouchLastRefreshed(ctx context.Context, id uuid.UUID, refreshedAt time.Time) error {
	return nil
}

func (s *fakeStore) DeleteConnection(ctx context.Context, userID uuid.UUID) error { return nil }

func (s *fakeStore) ListDashboardsForRole(ctx context.Context, role string) ([]model.Dashboard, error) {
	return nil, nil
}

type fakeTokens struct {
	failFor map[uuid.UUID]error
}

func (f *fakeTokens) AccessToken(ctx context.Context, connectionID uuid.UUID) (string, error) {
	if err, ok := f.failFor[connectionID]; ok {
		return "", err
	}
	return "access-" + connectionID.String(), nil
}

type fakeData struct {
	transactions []xero.BankTransaction
	accounts     []xero.Account
	report       *xero.Report

	bankErr error
}

func (f *fakeData) BankTransactions(ctx context.Context, accessToken, tenantID string) ([]xero.BankTransaction, json.RawMessage, error) {
	if f.bankErr != nil {
		return nil, nil, f.bankErr
	}
	return f.transactions, json.RawMessage(`{"BankTransactions":[]}`), nil
}

func (f *fakeData) Accounts(ctx context.Context, accessToken, tenantID string) ([]xero.Account, json.RawMessage, error) {
	return f.accounts, json.RawMessage(`{"Accounts":[]}`), nil
}

func (f *fakeData) ProfitAndLoss(ctx context.Context, accessToken, tenantID string) (*xero.Report, json.RawMessage, error) {
	return f.report, json.RawMessage(`{"Reports":[]}`), nil
}

func connection(userID uuid.UUID) model.Connection {
	return model.Connection{
		ID:       uuid.New(),
		UserID:   userID,
		TenantID: "tenant-" + userID.String()[:8],
	}
}

func receiveTxn(total float64, daysAgo int, now time.Time) xero.BankTransaction {
	return xero.BankTransaction{
		Type:  "RECEIVE",
		Total: total,
		Date:  xero.Date{Time: now.AddDate(0, 0, -daysAgo)},
	}
}

func TestWeeklyIncome(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	transactions := []xero.BankTransaction{
		receiveTxn(100.50, 1, now),
		receiveTxn(200.25, 6, now),
		receiveTxn(999.99, 10, now), // outside the window
		{Type: "SPEND", Total: 50, Date: xero.Date{Time: now.AddDate(0, 0, -1)}},
	}

	got := WeeklyIncome(transactions, now)
	if got != 300.75 {
		t.Errorf("WeeklyIncome = %v, want 300.75", got)
	}
}

func TestWeeklyIncomeRounding(t *testing.T) {
	now := time.Now().UTC()
	transactions := []xero.BankTransaction{
		receiveTxn(10.555, 1, now),
		receiveTxn(20.444, 2, now),
	}
	if got := WeeklyIncome(transactions, now); got != 31.0 {
		t.Errorf("WeeklyIncome = %v, want 31", got)
	}
}

func TestWeeklyIncomeEmpty(t *testing.T) {
	if got := WeeklyIncome(nil, time.Now()); got != 0 {
		t.Errorf("WeeklyIncome = %v, want 0", got)
	}
}

func numericRow(title string, values ...string) xero.Row {
	row := xero.Row{RowType: "Row", Title: title}
	row.Cells = append(row.Cells, xero.Cell{Value: title})
	for _, v := range values {
		row.Cells = append(row.Cells, xero.Cell{Value: v})
	}
	return row
}

func TestRollingAverage(t *testing.T) {
	report := &xero.Report{Rows: []xero.Row{
		numericRow("Wages and Salaries", "10", "20", "30", "40", "50", "60", "70", "80", "90", "100"),
	}}

	// Ten numeric cells, averaged over the trailing eight: 30..100.
	if got := RollingAverage(report, "Wages and Salaries", 8); got != 65 {
		t.Errorf("RollingAverage = %v, want 65", got)
	}
}

func TestRollingAverageFewerCellsThanWindow(t *testing.T) {
	report := &xero.Report{Rows: []xero.Row{
		numericRow("Wages and Salaries", "10", "20"),
	}}
	if got := RollingAverage(report, "Wages and Salaries", 8); got != 15 {
		t.Errorf("RollingAverage = %v, want 15", got)
	}
}

func TestRollingAverageSectionSummaryRow(t *testing.T) {
	report := &xero.Report{Rows: []xero.Row{
		{
			RowType: "Section",
			Title:   "Operating Expenses",
			Rows: []xero.Row{
				{RowType: "Row", Cells: []xero.Cell{{Value: "Rent"}, {Value: "100"}}},
				{RowType: "SummaryRow", Cells: []xero.Cell{{Value: "Total Operating Expenses"}, {Value: "200"}, {Value: "300"}}},
			},
		},
	}}
	if got := RollingAverage(report, "Operating Expenses", 8); got != 250 {
		t.Errorf("RollingAverage = %v, want 250", got)
	}
}

func TestRollingAverageUnavailable(t *testing.T) {
	if got := RollingAverage(nil, "Wages", 8); got != 0 {
		t.Errorf("nil report = %v, want 0", got)
	}
	report := &xero.Report{Rows: []xero.Row{numericRow("Rent", "10")}}
	if got := RollingAverage(report, "Wages", 8); got != 0 {
		t.Errorf("missing row = %v, want 0", got)
	}
	labelOnly := &xero.Report{Rows: []xero.Row{{Title: "Wages", Cells: []xero.Cell{{Value: "Wages"}}}}}
	if got := RollingAverage(labelOnly, "Wages", 8); got != 0 {
		t.Errorf("no numeric cells = %v, want 0", got)
	}
}

func TestTransformUsesAccountNameForWages(t *testing.T) {
	now := time.Now().UTC()
	report := &xero.Report{Rows: []xero.Row{
		numericRow("Staff Costs", "100", "200"),
		{
			RowType: "Section",
			Rows: []xero.Row{
				{RowType: "Row", Title: "Cost of Sales", Cells: []xero.Cell{{Value: "42"}}},
			},
		},
	}}
	accounts := []xero.Account{{Code: "500", Name: "Staff Costs"}}

	m := Transform(nil, accounts, report, now)
	if m.AvgWages != 150 {
		t.Errorf("AvgWages = %v, want 150", m.AvgWages)
	}
	if m.TotalCostOfSales != 42 {
		t.Errorf("TotalCostOfSales = %v, want 42", m.TotalCostOfSales)
	}
	if m.TotalOperatingExpenses != 0 {
		t.Errorf("TotalOperatingExpenses = %v, want 0", m.TotalOperatingExpenses)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	conns := []model.Connection{connection(users[0]), connection(users[1]), connection(users[2])}
	store := newFakeStore(conns...)

	tokens := &fakeTokens{failFor: map[uuid.UUID]error{
		conns[1].ID: fmt.Errorf("token refresh failed: 400"),
	}}
	extractor := NewExtractor(store, tokens, &fakeData{}, zap.NewNop())

	summary, err := extractor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Success != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].UserID != users[1].String() {
		t.Fatalf("errors = %+v", summary.Errors)
	}
	if summary.Errors[0].Error != "token refresh failed: 400" {
		t.Errorf("error = %q, want the refresh failure verbatim", summary.Errors[0].Error)
	}
	if len(store.cache) != 2 {
		t.Errorf("cache rows = %d, want 2", len(store.cache))
	}
}

func TestRunDataFetchFailureIsPerUser(t *testing.T) {
	conn := connection(uuid.New())
	store := newFakeStore(conn)
	data := &fakeData{bankErr: &xero.StatusError{Op: "BankTransactions API", StatusCode: 403}}
	extractor := NewExtractor(store, &fakeTokens{}, data, zap.NewNop())

	summary, err := extractor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Success != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Errors[0].Error != "BankTransactions API failed: 403" {
		t.Errorf("error = %q", summary.Errors[0].Error)
	}
}

func TestRunWritesCacheRow(t *testing.T) {
	userID := uuid.New()
	conn := connection(userID)
	store := newFakeStore(conn)

	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	data := &fakeData{
		transactions: []xero.BankTransaction{receiveTxn(500, 1, now)},
	}
	extractor := NewExtractor(store, &fakeTokens{}, data, zap.NewNop())
	extractor.now = func() time.Time { return now }

	if _, err := extractor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	row, ok := store.cache[userID.String()+"|2026-03-10"]
	if !ok {
		t.Fatalf("no cache row for today, cache = %v", store.cache)
	}
	if row.WeeklyIncome == nil || *row.WeeklyIncome != 500 {
		t.Errorf("WeeklyIncome = %v", row.WeeklyIncome)
	}
	if !row.Date.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, want start of day", row.Date)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(row.DataJSON, &payload); err != nil {
		t.Fatalf("data_json invalid: %v", err)
	}
	for _, key := range []string{"bankTransactions", "accounts", "profitLoss"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("data_json missing %q", key)
		}
	}
}

func TestRunSameDayOverwrites(t *testing.T) {
	userID := uuid.New()
	conn := connection(userID)
	store := newFakeStore(conn)

	now := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	data := &fakeData{transactions: []xero.BankTransaction{receiveTxn(100, 1, now)}}
	extractor := NewExtractor(store, &fakeTokens{}, data, zap.NewNop())
	extractor.now = func() time.Time { return now }

	if _, err := extractor.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	data.transactions = []xero.BankTransaction{receiveTxn(900, 1, now)}
	if _, err := extractor.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(store.cache) != 1 {
		t.Fatalf("cache rows = %d, want 1", len(store.cache))
	}
	row := store.cache[userID.String()+"|2026-03-10"]
	if *row.WeeklyIncome != 900 {
		t.Errorf("WeeklyIncome = %v, want 900 after overwrite", *row.WeeklyIncome)
	}
}

func newTestApp(store *fakeStore) *fiber.App {
	extractor := NewExtractor(store, &fakeTokens{}, &fakeData{}, zap.NewNop())
	handlers := NewHandlers(extractor, zap.NewNop())

	app := fiber.New()
	SetupRoutes(app, handlers, auth.RequireServiceRole("service-key"))
	return app
}

func triggerExtract(t *testing.T, app *fiber.App, authorized bool) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/xero-etl-extract", nil)
	if authorized {
		req.Header.Set("Authorization", "Bearer service-key")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestExtractEndpointAllSuccess(t *testing.T) {
	store := newFakeStore(connection(uuid.New()))
	resp := triggerExtract(t, newTestApp(store), true)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Success != 1 || summary.Failed != 0 || len(summary.Errors) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestExtractEndpointPartialFailure(t *testing.T) {
	good := connection(uuid.New())
	bad := connection(uuid.New())
	store := newFakeStore(good, bad)

	extractor := NewExtractor(store, &fakeTokens{failFor: map[uuid.UUID]error{
		bad.ID: fmt.Errorf("decrypt refresh token: cipher: message authentication failed"),
	}}, &fakeData{}, zap.NewNop())
	handlers := NewHandlers(extractor, zap.NewNop())
	app := fiber.New()
	SetupRoutes(app, handlers, auth.RequireServiceRole("service-key"))

	resp := triggerExtract(t, app, true)
	if resp.StatusCode != fiber.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", resp.StatusCode)
	}
}

func TestExtractEndpointListFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = fmt.Errorf("connection refused")
	resp := triggerExtract(t, newTestApp(store), true)
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestExtractEndpointRejectsNonPost(t *testing.T) {
	app := newTestApp(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/xero-etl-extract", nil)
	req.Header.Set("Authorization", "Bearer service-key")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestExtractEndpointRequiresServiceKey(t *testing.T) {
	resp := triggerExtract(t, newTestApp(newFakeStore()), false)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
