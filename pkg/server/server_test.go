package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/config"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/shelfwise/circulation/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testServer struct {
	e  *echo.Echo
	db *bun.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutils.NewTestDB(t)
	cfg := config.NewForTest()
	p, err := policy.FromConfig(cfg)
	require.NoError(t, err)
	e, err := newEcho(cfg, db, clock.NewMock(time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)), p)
	require.NoError(t, err)
	return &testServer{e: e, db: db}
}

func (ts *testServer) do(t *testing.T, method, path, body string, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if session != nil {
		req.AddCookie(session)
	}
	rr := httptest.NewRecorder()
	ts.e.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) login(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/auth/login", `{"username":"`+user.Username+`","password":"`+testutils.Password+`"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			return cookie
		}
	}
	require.FailNow(t, "no session cookie")
	return nil
}

type errorBody struct {
	Error struct {
		Code   string `json:"code"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	for _, path := range []string{"/books", "/loans", "/reservations", "/stats", "/config/policy"} {
		rr := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestLoanFlowOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	book := testutils.CreateBook(t, ts.db, "Beloved", 1)
	bookPath := "/books/" + strconv.Itoa(book.ID)
	alice := ts.login(t, testutils.CreateMember(t, ts.db))
	bob := ts.login(t, testutils.CreateMember(t, ts.db))

	rr := ts.do(t, http.MethodPost, "/loans", `{"book_id":`+strconv.Itoa(book.ID)+`}`, alice)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	loan := decode[struct {
		ID            int    `json:"id"`
		DisplayStatus string `json:"display_status"`
	}](t, rr)
	assert.Equal(t, models.LoanStatusActive, loan.DisplayStatus)

	rr = ts.do(t, http.MethodGet, bookPath+"/availability", "", bob)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[struct {
		Available int `json:"available"`
	}](t, rr).Available)

	rr = ts.do(t, http.MethodPost, "/loans", `{"book_id":`+strconv.Itoa(book.ID)+`}`, bob)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[errorBody](t, rr)
	assert.Equal(t, "policy_violation", body.Error.Code)
	assert.Equal(t, policy.ReasonBookUnavailable, body.Error.Reason)

	// Bob can't see or return Alice's loan.
	loanPath := "/loans/" + strconv.Itoa(loan.ID)
	rr = ts.do(t, http.MethodPost, loanPath+"/return", "", bob)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodPost, loanPath+"/return", "", alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodPost, loanPath+"/return", "", alice)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_returned", decode[errorBody](t, rr).Error.Code)

	rr = ts.do(t, http.MethodPost, "/loans", `{"book_id":`+strconv.Itoa(book.ID)+`}`, bob)
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestReservationFlowOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	book := testutils.CreateBook(t, ts.db, "Rebecca", 1)
	member := ts.login(t, testutils.CreateMember(t, ts.db))
	payload := `{"book_id":` + strconv.Itoa(book.ID) + `}`

	rr := ts.do(t, http.MethodPost, "/reservations", payload, member)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reservation := decode[struct {
		ID int `json:"id"`
	}](t, rr)

	rr = ts.do(t, http.MethodPost, "/reservations", payload, member)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "duplicate_active", decode[errorBody](t, rr).Error.Code)

	rr = ts.do(t, http.MethodPost, "/reservations/"+strconv.Itoa(reservation.ID)+"/cancel", "", member)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, testutils.Reload(t, ts.db, book).AvailableCopies)

	// Only administrators run the sweep.
	rr = ts.do(t, http.MethodPost, "/reservations/expire", "", member)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSelfRegistration(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	book := testutils.CreateBook(t, ts.db, "Middlemarch", 1)

	rr := ts.do(t, http.MethodPost, "/auth/register", `{"username":"walkin","password":"password123"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var session *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			session = cookie
		}
	}
	require.NotNil(t, session)

	rr = ts.do(t, http.MethodPost, "/loans", `{"book_id":`+strconv.Itoa(book.ID)+`}`, session)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/users", "", session)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPost, "/auth/register", `{"username":"WALKIN","password":"password123"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "validation_error", decode[errorBody](t, rr).Error.Code)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	testutils.CreateBook(t, ts.db, "Ulysses", 4)
	admin := ts.login(t, testutils.CreateAdmin(t, ts.db))
	member := ts.login(t, testutils.CreateMember(t, ts.db))

	rr := ts.do(t, http.MethodGet, "/stats", "", member)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodGet, "/stats", "", admin)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[struct {
		Books       int `json:"books"`
		TotalCopies int `json:"total_copies"`
		Users       int `json:"users"`
	}](t, rr)
	assert.Equal(t, 1, stats.Books)
	assert.Equal(t, 4, stats.TotalCopies)
	assert.Equal(t, 2, stats.Users)

	rr = ts.do(t, http.MethodGet, "/stats/report", "", member)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodGet, "/stats/report?from=2026-02-01&to=2026-02-28", "", admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[struct {
		Loans        int               `json:"loans"`
		OnTimeRate   float64           `json:"on_time_rate"`
		PopularBooks []json.RawMessage `json:"popular_books"`
	}](t, rr)
	assert.Zero(t, report.Loans)
	assert.NotNil(t, report.PopularBooks)

	rr = ts.do(t, http.MethodGet, "/stats/report?from=2026-03-01&to=2026-02-01", "", admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(t, http.MethodGet, "/stats/report?from=March", "", admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(t, http.MethodPost, "/inventory/reconcile", "", admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 0, decode[struct {
		Corrected int `json:"corrected"`
	}](t, rr).Corrected)

	rr = ts.do(t, http.MethodGet, "/config/policy", "", member)
	require.Equal(t, http.StatusOK, rr.Code)
}
