package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/estatebook/internal/app"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/config"
	"github.com/smallbiznis/estatebook/internal/migration"
	"github.com/smallbiznis/estatebook/internal/observability"
	"github.com/smallbiznis/estatebook/internal/providers"
	"github.com/smallbiznis/estatebook/internal/scheduler"
	"github.com/smallbiznis/estatebook/internal/server"
	"github.com/smallbiznis/estatebook/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app       *fx.App
	server    *server.Server
	db        *gorm.DB
	baseURL   string
	scheduler *scheduler.Scheduler
	httpSrv   *httptest.Server
}

var (
	env     *testEnv
	nextOrg atomic.Int64
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_PaymentStatusRollup(t *testing.T) {
	client := newHTTPClient()
	headers := orgHeaders()
	fixture := createProjectFixture(t, client, headers)

	contractID := createContract(t, client, headers, fixture, fixture.unitIDs[0], "2024-01-15")
	if contractID == "" {
		t.Fatalf("expected contract id")
	}

	report := getPaymentStatus(t, client, headers, fixture.projectID, "2024-03-31")
	assertTotals(t, report.Totals, 1, 1, 500_000_000, 600_000_000)
	if len(report.Rows) != 1 {
		t.Fatalf("expected single rollup row, got %d", len(report.Rows))
	}
	if report.Rows[0].OrderGroupName != "Phase 1" || report.Rows[0].UnitTypeName != "84A" {
		t.Fatalf("unexpected row labels: %+v", report.Rows[0])
	}

	// contract signed after the report date counts as uncontracted
	early := getPaymentStatus(t, client, headers, fixture.projectID, "2024-01-10")
	assertTotals(t, early.Totals, 0, 2, 0, 1_100_000_000)

	if got := countRows(t, env.db, "ledger_entries", "org_id = ?", mustParseID(t, headers[server.HeaderOrg])); got != 1 {
		t.Fatalf("expected one ledger entry for the signed contract, got %d", got)
	}
}

func TestE2E_ContractCancelReleasesUnit(t *testing.T) {
	client := newHTTPClient()
	headers := orgHeaders()
	fixture := createProjectFixture(t, client, headers)

	contractID := createContract(t, client, headers, fixture, fixture.unitIDs[0], "2024-01-15")

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/projects/"+fixture.projectID+"/contracts", map[string]any{
		"house_unit_id":  fixture.unitIDs[0],
		"order_group_id": fixture.groupID,
		"contractor":     "Second Buyer",
		"contract_date":  "2024-02-01",
	}, headers)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for double contract, got %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, client, http.MethodPost, env.baseURL+"/api/contracts/"+contractID+"/cancel", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel contract failed: %d %s", resp.StatusCode, body)
	}

	report := getPaymentStatus(t, client, headers, fixture.projectID, "2024-03-31")
	assertTotals(t, report.Totals, 0, 2, 0, 1_100_000_000)

	resp, _ = doJSON(t, client, http.MethodPost, env.baseURL+"/api/contracts/"+contractID+"/cancel", nil, headers)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for second cancel, got %d", resp.StatusCode)
	}
}

func TestE2E_InvalidScheduleRejected(t *testing.T) {
	client := newHTTPClient()
	headers := orgHeaders()
	fixture := createProjectFixture(t, client, headers)

	resp, body := doJSON(t, client, http.MethodPut, env.baseURL+"/api/projects/"+fixture.projectID+"/installments/1", map[string]any{
		"steps": []map[string]any{
			{"code": "DOWN", "pay_time": 1, "name": "down payment", "ratio": "0.1"},
			{"code": "BALANCE", "pay_time": 2, "name": "balance", "ratio": "0.5"},
		},
	}, headers)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "invalid_schedule") {
		t.Fatalf("expected invalid_schedule error, got %s", body)
	}

	// previous schedule is untouched
	resp, body = doJSON(t, client, http.MethodGet, env.baseURL+"/api/projects/"+fixture.projectID+"/installments?type_sort=1", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list installments failed: %d %s", resp.StatusCode, body)
	}
	var steps struct {
		Data []struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	decode(t, body, &steps)
	if len(steps.Data) != 3 {
		t.Fatalf("expected original 3 steps, got %d", len(steps.Data))
	}
}

func TestE2E_SchedulerRefreshesStaleCaches(t *testing.T) {
	client := newHTTPClient()
	headers := orgHeaders()
	fixture := createProjectFixture(t, client, headers)
	orgID := mustParseID(t, headers[server.HeaderOrg])

	resp, body := doJSON(t, client, http.MethodPatch, env.baseURL+"/api/units/"+fixture.unitIDs[1]+"/price", map[string]any{
		"price": 700_000_000,
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update price failed: %d %s", resp.StatusCode, body)
	}
	if got := countRows(t, env.db, "contract_prices", "org_id = ? AND is_cache_valid = ?", orgID, false); got == 0 {
		t.Fatalf("expected stale caches after price change")
	}

	if err := env.scheduler.RecalculateStaleJob(context.Background()); err != nil {
		t.Fatalf("recalculate stale job: %v", err)
	}
	if got := countRows(t, env.db, "contract_prices", "org_id = ? AND is_cache_valid = ?", orgID, false); got != 0 {
		t.Fatalf("expected no stale caches, got %d", got)
	}

	resp, body = doJSON(t, client, http.MethodGet, env.baseURL+"/api/units/"+fixture.unitIDs[1]+"/contract-price", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get contract price failed: %d %s", resp.StatusCode, body)
	}
	var cp struct {
		Data struct {
			Price          int64 `json:"price"`
			IsCacheValid   bool  `json:"is_cache_valid"`
			PaymentAmounts []struct {
				Code   string `json:"code"`
				Amount int64  `json:"amount"`
			} `json:"payment_amounts"`
		} `json:"data"`
	}
	decode(t, body, &cp)
	if !cp.Data.IsCacheValid || cp.Data.Price != 700_000_000 {
		t.Fatalf("unexpected contract price: %+v", cp.Data)
	}
	var sum int64
	for _, line := range cp.Data.PaymentAmounts {
		sum += line.Amount
	}
	if sum != 700_000_000 || len(cp.Data.PaymentAmounts) != 3 {
		t.Fatalf("expected 3 lines summing to the price, got %+v", cp.Data.PaymentAmounts)
	}
}

func TestE2E_OrganizationsAreIsolated(t *testing.T) {
	client := newHTTPClient()
	owner := orgHeaders()
	fixture := createProjectFixture(t, client, owner)

	resp, _ := doJSON(t, client, http.MethodGet, env.baseURL+"/api/projects/"+fixture.projectID+"/payment-status", nil, orgHeaders())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 across organizations, got %d", resp.StatusCode)
	}
}

func TestE2E_AuditLog(t *testing.T) {
	client := newHTTPClient()
	headers := orgHeaders()
	headers[server.HeaderActor] = "agent-7"
	createProjectFixture(t, client, headers)

	resp, body := doJSON(t, client, http.MethodGet, env.baseURL+"/api/audit-logs?action=house_unit.created", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list audit logs failed: %d %s", resp.StatusCode, body)
	}
	var logs struct {
		Data []struct {
			Action    string  `json:"action"`
			ActorType string  `json:"actor_type"`
			ActorID   *string `json:"actor_id"`
		} `json:"data"`
	}
	decode(t, body, &logs)
	if len(logs.Data) != 2 {
		t.Fatalf("expected 2 house_unit.created entries, got %d", len(logs.Data))
	}
	for _, entry := range logs.Data {
		if entry.ActorType != "user" || entry.ActorID == nil || *entry.ActorID != "agent-7" {
			t.Fatalf("unexpected actor on audit entry: %+v", entry)
		}
	}
}

func TestE2E_ExportPaymentStatus(t *testing.T) {
	client := newHTTPClient()
	headers := orgHeaders()
	fixture := createProjectFixture(t, client, headers)

	for _, format := range []string{"pdf", "xlsx"} {
		req, err := http.NewRequest(http.MethodGet, env.baseURL+"/api/projects/"+fixture.projectID+"/payment-status."+format+"?as_of=2024-03-31", nil)
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("export %s failed: %v", format, err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if format == "pdf" && resp.StatusCode == http.StatusServiceUnavailable && strings.Contains(string(data), "pdf_font_unavailable") {
			t.Log("skipping pdf export: host has no Hangul font and PDF_FONT_PATH is unset")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("export %s: expected 200, got %d: %s", format, resp.StatusCode, data)
		}
		if len(data) == 0 {
			t.Fatalf("export %s: empty body", format)
		}
		want := "payment-status-" + fixture.slug + "-2024-03-31." + format
		if !strings.Contains(resp.Header.Get("Content-Disposition"), want) {
			t.Fatalf("export %s: unexpected disposition %q", format, resp.Header.Get("Content-Disposition"))
		}
	}
}

type projectFixture struct {
	projectID  string
	slug       string
	unitTypeID string
	groupID    string
	unitIDs    []string
}

type rollupRow struct {
	OrderGroupName    string `json:"order_group_name"`
	UnitTypeName      string `json:"unit_type_name"`
	ContractUnits     int    `json:"contract_units"`
	NonContractUnits  int    `json:"non_contract_units"`
	ContractAmount    int64  `json:"contract_amount"`
	NonContractAmount int64  `json:"non_contract_amount"`
	TotalSalesAmount  int64  `json:"total_sales_amount"`
	TotalBudget       int64  `json:"total_budget"`
}

type paymentStatus struct {
	Rows   []rollupRow `json:"rows"`
	Totals rollupRow   `json:"totals"`
}

// createProjectFixture builds one project with a single 84A type on a
// 10/60/30 schedule, a default order group and two units priced 500M and 600M.
func createProjectFixture(t *testing.T, client *http.Client, headers map[string]string) projectFixture {
	t.Helper()
	fixture := projectFixture{slug: "riverside-" + strings.ToLower(headers[server.HeaderOrg])}

	fixture.projectID = postForID(t, client, "/api/projects", map[string]any{
		"name": "Riverside",
		"slug": fixture.slug,
	}, headers)
	fixture.unitTypeID = postForID(t, client, "/api/projects/"+fixture.projectID+"/unit-types", map[string]any{
		"name": "84A",
		"sort": 1,
	}, headers)

	resp, body := doJSON(t, client, http.MethodPut, env.baseURL+"/api/projects/"+fixture.projectID+"/installments/1", map[string]any{
		"steps": []map[string]any{
			{"code": "DOWN", "pay_time": 1, "name": "down payment", "ratio": "0.1"},
			{"code": "MIDDLE", "pay_time": 2, "name": "middle payment", "ratio": "0.6"},
			{"code": "BALANCE", "pay_time": 3, "name": "balance", "ratio": "0.3"},
		},
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace schedule failed: %d %s", resp.StatusCode, body)
	}

	fixture.groupID = postForID(t, client, "/api/projects/"+fixture.projectID+"/order-groups", map[string]any{
		"order_number":                1,
		"name":                        "Phase 1",
		"is_default_for_uncontracted": true,
	}, headers)

	for i, price := range []int64{500_000_000, 600_000_000} {
		fixture.unitIDs = append(fixture.unitIDs, postForID(t, client, "/api/projects/"+fixture.projectID+"/units", map[string]any{
			"unit_type_id": fixture.unitTypeID,
			"dong":         "101",
			"ho":           fmt.Sprintf("%d01", i+1),
			"price":        price,
		}, headers))
	}
	return fixture
}

func createContract(t *testing.T, client *http.Client, headers map[string]string, fixture projectFixture, unitID, date string) string {
	t.Helper()
	return postForID(t, client, "/api/projects/"+fixture.projectID+"/contracts", map[string]any{
		"house_unit_id":  unitID,
		"order_group_id": fixture.groupID,
		"contractor":     "Kim Buyer",
		"contract_date":  date,
	}, headers)
}

func getPaymentStatus(t *testing.T, client *http.Client, headers map[string]string, projectID, asOf string) paymentStatus {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodGet, env.baseURL+"/api/projects/"+projectID+"/payment-status?as_of="+asOf, nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment status failed: %d %s", resp.StatusCode, body)
	}
	var out struct {
		Data paymentStatus `json:"data"`
	}
	decode(t, body, &out)
	return out.Data
}

func assertTotals(t *testing.T, totals rollupRow, contractUnits, nonContractUnits int, contractAmount, nonContractAmount int64) {
	t.Helper()
	if totals.ContractUnits != contractUnits || totals.NonContractUnits != nonContractUnits {
		t.Fatalf("unexpected unit counts: %+v", totals)
	}
	if totals.ContractAmount != contractAmount || totals.NonContractAmount != nonContractAmount {
		t.Fatalf("unexpected amounts: %+v", totals)
	}
	if totals.TotalSalesAmount != contractAmount+nonContractAmount || totals.TotalBudget != totals.TotalSalesAmount {
		t.Fatalf("totals do not balance: %+v", totals)
	}
}

func postForID(t *testing.T, client *http.Client, path string, payload any, headers map[string]string) string {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+path, payload, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST %s: expected 201, got %d: %s", path, resp.StatusCode, body)
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decode(t, body, &out)
	if out.Data.ID == "" {
		t.Fatalf("POST %s: missing id in %s", path, body)
	}
	return out.Data.ID
}

func startEnv() (*testEnv, error) {
	var (
		srv         *server.Server
		dbConn      *gorm.DB
		schedulerSv *scheduler.Scheduler
	)

	application := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(app.RegisterSnowflake),
		fx.Provide(newTestDB),
		clock.Module,
		app.Domains,
		providers.Module,
		fx.Provide(scheduler.New),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &dbConn, &schedulerSv),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(srv.Engine())

	return &testEnv{
		app:       application,
		server:    srv,
		db:        dbConn,
		baseURL:   httpSrv.URL,
		scheduler: schedulerSv,
		httpSrv:   httpSrv,
	}, nil
}

func newTestDB() (*gorm.DB, error) {
	conn, err := db.NewTest()
	if err != nil {
		return nil, err
	}
	if err := migration.AutoMigrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func setDefaultEnv() {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("OTEL_ENABLED", "false")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

// orgHeaders scopes each test to a fresh organization so tests never share rows.
func orgHeaders() map[string]string {
	return map[string]string{
		server.HeaderOrg: fmt.Sprintf("%d", 1000+nextOrg.Add(1)),
	}
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func mustParseID(t *testing.T, value string) snowflake.ID {
	t.Helper()
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		t.Fatalf("invalid snowflake id: %s", value)
	}
	return parsed
}

func decode(t *testing.T, body []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func doJSON(t *testing.T, client *http.Client, method, reqURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
