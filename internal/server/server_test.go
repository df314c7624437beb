package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/estatebook/internal/allocation"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	"github.com/smallbiznis/estatebook/internal/observability"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	paymentstatusdomain "github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	"github.com/smallbiznis/estatebook/internal/providers/pdf"
	"github.com/smallbiznis/estatebook/internal/providers/xlsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePaymentStatusService struct {
	report    *paymentstatusdomain.Report
	err       error
	orgID     snowflake.ID
	projectID string
	asOf      *time.Time
}

func (f *fakePaymentStatusService) Aggregate(ctx context.Context, projectID string, asOf *time.Time) (*paymentstatusdomain.Report, error) {
	f.orgID, _ = orgcontext.Require(ctx)
	f.projectID = projectID
	f.asOf = asOf
	return f.report, f.err
}

type fakeProjectService struct {
	err error
}

func (f *fakeProjectService) Create(ctx context.Context, req projectdomain.CreateRequest) (*projectdomain.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	orgID, _ := orgcontext.Require(ctx)
	return &projectdomain.Project{ID: snowflake.ID(10), OrgID: orgID, Name: req.Name, Slug: req.Slug}, nil
}

func (f *fakeProjectService) List(ctx context.Context) ([]projectdomain.Project, error) {
	return nil, f.err
}

func (f *fakeProjectService) Get(ctx context.Context, id string) (*projectdomain.Project, error) {
	return nil, f.err
}

func newTestServer(t *testing.T, status *fakePaymentStatusService, projects *fakeProjectService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		engine:           NewEngine(observability.Config{}, nil),
		log:              zap.NewNop(),
		projectSvc:       projects,
		paymentStatusSvc: status,
		xlsxProvider:     xlsx.New(),
	}
	s.registerAPIRoutes()
	s.registerFallback()
	return s
}

func sampleReport() *paymentstatusdomain.Report {
	return &paymentstatusdomain.Report{
		ProjectID:   snowflake.ID(77),
		ProjectName: "Riverside",
		AsOf:        time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Rows: []paymentstatusdomain.RollupRow{
			{OrderGroupName: "1차", UnitTypeName: "84A", ContractUnits: 1, ContractAmount: 100, TotalSalesAmount: 100, TotalBudget: 100},
		},
		Totals:   paymentstatusdomain.RollupRow{OrderGroupName: "합계", ContractUnits: 1, ContractAmount: 100, TotalSalesAmount: 100, TotalBudget: 100},
		Warnings: []paymentstatusdomain.Warning{},
		Skipped:  []paymentstatusdomain.SkippedUnitType{},
	}
}

func perform(s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestMapErrorStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", projectdomain.ErrInvalidName, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("create: %w", contractdomain.ErrInvalidContractor), http.StatusBadRequest},
		{"explicit validation", newValidationError("as_of", "invalid_as_of", "bad"), http.StatusBadRequest},
		{"slug conflict", projectdomain.ErrSlugTaken, http.StatusConflict},
		{"double contract", contractdomain.ErrUnitAlreadyContracted, http.StatusConflict},
		{"not found", contractdomain.ErrNotFound, http.StatusNotFound},
		{"project missing", paymentstatusdomain.ErrProjectNotFound, http.StatusNotFound},
		{"ratio sum", installmentdomain.ErrInvalidScheduleRatios, http.StatusUnprocessableEntity},
		{"allocation", &allocation.InvalidScheduleError{}, http.StatusUnprocessableEntity},
		{"pdf font", fmt.Errorf("render: %w", pdf.ErrFontUnavailable), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := mapError(tc.err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestClassifyErrorForLogHidesInternalDetail(t *testing.T) {
	errType, code := classifyErrorForLog(errors.New("pq: connection refused"))
	assert.Equal(t, "internal_error", errType)
	assert.Equal(t, "internal", code)

	errType, code = classifyErrorForLog(projectdomain.ErrInvalidName)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_name", code)
}

func TestOrgContextRejectsMalformedHeader(t *testing.T) {
	s := newTestServer(t, &fakePaymentStatusService{}, &fakeProjectService{})

	w := perform(s, http.MethodGet, "/api/projects", map[string]string{HeaderOrg: "not-a-number"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_organization")
}

func TestCreateProjectScopesToHeaderOrg(t *testing.T) {
	s := newTestServer(t, &fakePaymentStatusService{}, &fakeProjectService{})

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":" Riverside ","slug":"riverside"}`))
	req.Header.Set(HeaderOrg, "12345")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"name":"Riverside"`)
	assert.Contains(t, w.Body.String(), `"organization_id":"12345"`)
}

func TestGetPaymentStatusParsesAsOf(t *testing.T) {
	status := &fakePaymentStatusService{report: sampleReport()}
	s := newTestServer(t, status, &fakeProjectService{})

	w := perform(s, http.MethodGet, "/api/projects/77/payment-status?as_of=2024-03-31", map[string]string{HeaderOrg: "5"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, snowflake.ID(5), status.orgID)
	assert.Equal(t, "77", status.projectID)
	require.NotNil(t, status.asOf)
	assert.Equal(t, "2024-03-31", status.asOf.Format(dateOnlyLayout))
	assert.Contains(t, w.Body.String(), `"total_sales_amount":100`)
}

func TestGetPaymentStatusDefaultsAsOf(t *testing.T) {
	status := &fakePaymentStatusService{report: sampleReport()}
	s := newTestServer(t, status, &fakeProjectService{})

	w := perform(s, http.MethodGet, "/api/projects/77/payment-status", map[string]string{HeaderOrg: "5"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, status.asOf)
}

func TestGetPaymentStatusRejectsBadAsOf(t *testing.T) {
	status := &fakePaymentStatusService{report: sampleReport()}
	s := newTestServer(t, status, &fakeProjectService{})

	w := perform(s, http.MethodGet, "/api/projects/77/payment-status?as_of=31-03-2024", map[string]string{HeaderOrg: "5"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_as_of")
	assert.Empty(t, status.projectID)
}

func TestGetPaymentStatusProjectNotFound(t *testing.T) {
	status := &fakePaymentStatusService{err: paymentstatusdomain.ErrProjectNotFound}
	s := newTestServer(t, status, &fakeProjectService{})

	w := perform(s, http.MethodGet, "/api/projects/77/payment-status", map[string]string{HeaderOrg: "5"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportPaymentStatusXLSX(t *testing.T) {
	status := &fakePaymentStatusService{report: sampleReport()}
	s := newTestServer(t, status, &fakeProjectService{})

	w := perform(s, http.MethodGet, "/api/projects/77/payment-status.xlsx?as_of=2024-03-31", map[string]string{HeaderOrg: "5"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, contentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="payment-status-riverside-2024-03-31.xlsx"`, w.Header().Get("Content-Disposition"))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	// xlsx files are zip archives
	assert.Equal(t, "PK", string(body[:2]))
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	s := newTestServer(t, &fakePaymentStatusService{}, &fakeProjectService{})

	w := perform(s, http.MethodGet, "/api/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"not_found"`)
}

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.NotNil(t, w.from)
	require.NotNil(t, w.to)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *w.from)
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC), *w.to)

	w, err = parseWindow("2024-03-01T09:00:00+09:00", "")
	require.NoError(t, err)
	assert.True(t, w.from.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, w.to)

	_, err = parseWindow("", "March")
	status, payload := mapError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_to", payload.Errors[0].Code)
}
