package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"evalreport/internal/auth"
	"evalreport/internal/config"
	apierrors "evalreport/internal/errors"
	"evalreport/internal/evaluation"
	"evalreport/internal/infrastructure"
	"evalreport/internal/middleware"
	"evalreport/internal/services"
)

type mockReportService struct {
	mock.Mock
}

func (m *mockReportService) Report(ctx context.Context, req services.ReportRequest) (*services.Report, error) {
	args := m.Called(ctx, req)
	report, _ := args.Get(0).(*services.Report)
	return report, args.Error(1)
}

func (m *mockReportService) Options(ctx context.Context, access evaluation.Access) (evaluation.FilterOptions, error) {
	args := m.Called(ctx, access)
	return args.Get(0).(evaluation.FilterOptions), args.Error(1)
}

func (m *mockReportService) ExportWorkbook(ctx context.Context, req services.ReportRequest, w io.Writer) error {
	args := m.Called(ctx, req, w)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("PK-workbook"))
	}
	return args.Error(0)
}

func (m *mockReportService) ExportEvaluatorRanking(ctx context.Context, req services.ReportRequest, w io.Writer) error {
	args := m.Called(ctx, req, w)
	_, _ = w.Write([]byte("Evaluator,Region,Store,Evaluations\n"))
	return args.Error(0)
}

func (m *mockReportService) ExportHourlyVolume(ctx context.Context, req services.ReportRequest, w io.Writer) error {
	args := m.Called(ctx, req, w)
	_, _ = w.Write([]byte("Region,Store,Hour,Evaluations\n"))
	return args.Error(0)
}

func (m *mockReportService) ExportStoreSummary(ctx context.Context, req services.ReportRequest, w io.Writer) error {
	args := m.Called(ctx, req, w)
	_, _ = w.Write([]byte("Region,Store,Speed,Service,Quality,Helpfulness,Evaluations,Overall\n"))
	return args.Error(0)
}

func (m *mockReportService) Refresh(ctx context.Context) (services.LoadState, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.LoadState), args.Error(1)
}

func (m *mockReportService) ClearCache(ctx context.Context) { m.Called(ctx) }

func (m *mockReportService) Check(ctx context.Context) (*services.CheckResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*services.CheckResult)
	return result, args.Error(1)
}

func (m *mockReportService) Status() services.Status {
	return m.Called().Get(0).(services.Status)
}

type testServer struct {
	router   chi.Router
	service  *mockReportService
	sessions *auth.SessionStore
	admin    *auth.Session
	shop     *auth.Session
}

const testPassword = "s3cret-pass"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := discardLogger()
	eh := apierrors.NewErrorHandler(logger, false)
	v := middleware.NewValidator()

	hash, err := auth.HashPassword(testPassword, config.MinPasswordCost)
	require.NoError(t, err)
	dir := auth.NewDirectory([]config.UserConfig{
		{Username: "admin", PasswordHash: hash, Role: config.RoleAdmin},
		{Username: "carioca", PasswordHash: hash, Role: config.RoleStore, Store: "Carioca"},
	})
	sessions := auth.NewSessionStore(time.Hour, nil)

	svc := &mockReportService{}
	requireSession := middleware.RequireSession(sessions, logger, eh)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", NewAuthHandler(dir, sessions, v, infrastructure.NewNoopReportMetrics(), false, logger, eh).Routes(requireSession))
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Mount("/data", NewReportHandler(svc, v, logger, eh).Routes(middleware.RequireAdmin(logger, eh)))
			r.Post("/client-log", NewClientLogHandler(v, logger, eh).Handle)
		})
	})

	admin, err := dir.Authenticate("admin", testPassword)
	require.NoError(t, err)
	shop, err := dir.Authenticate("carioca", testPassword)
	require.NoError(t, err)

	return &testServer{
		router:   r,
		service:  svc,
		sessions: sessions,
		admin:    sessions.Create(admin),
		shop:     sessions.Create(shop),
	}
}

func (s *testServer) do(method, target, token string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func problemCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["error_code"].(string)
	return code
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/auth/login", "", `{"username":"carioca","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token   string `json:"token"`
		Session struct {
			Username string `json:"username"`
			Role     string `json:"role"`
			Store    string `json:"store"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "carioca", resp.Session.Username)
	assert.Equal(t, "Carioca", resp.Session.Store)
	assert.NotContains(t, rec.Body.String(), "password")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, config.SessionCookieName, cookies[0].Name)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	me := s.do(http.MethodGet, "/api/auth/me", resp.Token, "")
	assert.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"username":"carioca"`)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"unknown user", `{"username":"ghost","password":"nope"}`, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"missing password", `{"username":"admin"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"malformed json", `{"username":`, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, problemCode(t, rec))
		})
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/auth/logout", s.shop.Token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := s.sessions.Get(s.shop.Token)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", s.shop.Token, "").Code)
}

func TestGetReportParsesFilters(t *testing.T) {
	s := newTestServer(t)

	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s.service.On("Report", mock.Anything, mock.MatchedBy(func(req services.ReportRequest) bool {
		c := req.Criteria
		return req.Access.CanViewAllStores() &&
			c.DateFrom != nil && c.DateFrom.Equal(from) &&
			c.DateTo != nil && c.DateTo.Equal(to) &&
			c.Region == "RJ" &&
			assert.ObjectsAreEqual([]string{"Carioca", "Madureira"}, c.Stores) &&
			assert.ObjectsAreEqual([]string{"Caixa"}, c.Sectors) &&
			c.Hours != nil && c.Hours.From == 9 && c.Hours.To == 23 &&
			req.PreviewLimit == 50
	})).Return(&services.Report{Rows: 7}, nil).Once()

	rec := s.do(http.MethodGet,
		"/api/data/report?date_from=2024-03-10&date_to=2024-03-15&region=RJ&stores=Carioca,Madureira&sectors=Caixa&hour_from=9&preview=50",
		s.admin.Token, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rows":7`)
	s.service.AssertExpectations(t)
}

func TestGetReportStoreShortcutOverridesList(t *testing.T) {
	s := newTestServer(t)

	s.service.On("Report", mock.Anything, mock.MatchedBy(func(req services.ReportRequest) bool {
		return assert.ObjectsAreEqual([]string{"Mauá"}, req.Criteria.Stores)
	})).Return(&services.Report{}, nil).Once()

	rec := s.do(http.MethodGet, "/api/data/report?stores=Carioca&store=Mau%C3%A1", s.admin.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	s.service.AssertExpectations(t)
}

func TestGetReportStaleWarning(t *testing.T) {
	s := newTestServer(t)

	s.service.On("Report", mock.Anything, mock.Anything).Return(&services.Report{
		Load: services.LoadState{Outcome: services.OutcomeStale, Stale: true, Message: "quota exceeded"},
	}, nil).Once()

	rec := s.do(http.MethodGet, "/api/data/report", s.shop.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Warning"), "quota exceeded")
}

func TestGetReportRejectsBadQuery(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{
		"/api/data/report?date_from=15/03/2024",
		"/api/data/report?hour_from=24",
		"/api/data/report?hour_to=abc",
	} {
		rec := s.do(http.MethodGet, target, s.admin.Token, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	s.service.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestGetReportErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid criteria", evaluation.ErrInvalidCriteria, http.StatusBadRequest},
		{"no dataset", services.ErrNoDataset, http.StatusServiceUnavailable},
		{"rate limited", apierrors.NewTransportError(apierrors.TransportRateLimited, "id", "values.get", errors.New("429")), http.StatusTooManyRequests},
		{"not found", apierrors.NewTransportError(apierrors.TransportNotFound, "id", "spreadsheets.get", errors.New("404")), http.StatusNotFound},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.service.On("Report", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			rec := s.do(http.MethodGet, "/api/data/report", s.admin.Token, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestDataRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/data/report", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/data/options", "bogus", "").Code)
}

func TestGetOptionsUsesSession(t *testing.T) {
	s := newTestServer(t)

	s.service.On("Options", mock.Anything, mock.MatchedBy(func(a evaluation.Access) bool {
		return a.StoreScope() == "Carioca"
	})).Return(evaluation.FilterOptions{Stores: []string{"Carioca"}}, nil).Once()

	rec := s.do(http.MethodGet, "/api/data/options", s.shop.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stores":["Carioca"]`)
}

func TestExports(t *testing.T) {
	s := newTestServer(t)
	s.service.On("ExportWorkbook", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	s.service.On("ExportEvaluatorRanking", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	s.service.On("ExportHourlyVolume", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	s.service.On("ExportStoreSummary", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	rec := s.do(http.MethodGet, "/api/data/export/workbook?region=SP", s.shop.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "evaluation_report_by_store.xlsx")
	assert.Equal(t, "PK-workbook", rec.Body.String())

	rec = s.do(http.MethodGet, "/api/data/export/evaluators.csv", s.shop.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "evaluator_ranking.csv")

	rec = s.do(http.MethodGet, "/api/data/export/hourly.csv", s.shop.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Region,Store,Hour,Evaluations")

	rec = s.do(http.MethodGet, "/api/data/export/stores.csv", s.shop.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "store_summary.csv")
	assert.Contains(t, rec.Body.String(), "Evaluations,Overall")
	s.service.AssertExpectations(t)
}

func TestExportFailureIsProblem(t *testing.T) {
	s := newTestServer(t)
	s.service.On("ExportWorkbook", mock.Anything, mock.Anything, mock.Anything).
		Return(apierrors.NewExportError("failed to build workbook", errors.New("disk"))).Once()

	rec := s.do(http.MethodGet, "/api/data/export/workbook", s.admin.Token, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "PK-workbook")
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.service.On("Refresh", mock.Anything).Return(services.LoadState{Outcome: services.OutcomeFresh}, nil).Once()
	s.service.On("ClearCache", mock.Anything).Once()
	s.service.On("Check", mock.Anything).Return(&services.CheckResult{Tabs: []string{"Carioca"}}, nil).Once()

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/data/refresh", s.shop.Token, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/data/cache", s.shop.Token, "").Code)

	rec := s.do(http.MethodPost, "/api/data/refresh", s.admin.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"fresh"`)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/data/cache", s.admin.Token, "").Code)

	rec = s.do(http.MethodGet, "/api/data/check", s.admin.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tabs":["Carioca"]`)

	s.service.AssertExpectations(t)
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t)
	s.service.On("Status").Return(services.Status{Loaded: true, Records: 12}).Once()

	rec := s.do(http.MethodGet, "/api/data/status", s.shop.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":12`)
}

func TestClientLog(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/client-log", s.shop.Token, `{"level":"warn","message":"chart failed","source":"dashboard"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/api/client-log", s.shop.Token, `{"level":"loud","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/client-log", s.shop.Token, `{"level":"info"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
