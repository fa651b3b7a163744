package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/api/controllers"
	authsvc "github.com/ibizabroker/lms-backend/internal/auth"
	booksvc "github.com/ibizabroker/lms-backend/internal/books"
	borrowsvc "github.com/ibizabroker/lms-backend/internal/borrowing"
	feedbacksvc "github.com/ibizabroker/lms-backend/internal/feedback"
	ratingsvc "github.com/ibizabroker/lms-backend/internal/ratings"
	statssvc "github.com/ibizabroker/lms-backend/internal/statistics"
	usersvc "github.com/ibizabroker/lms-backend/internal/users"
	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupRouterTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  roles TEXT NOT NULL,
  balance NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  genre TEXT,
  copies_available INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS borrow_records (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  book_id TEXT NOT NULL,
  issue_date DATETIME NOT NULL,
  due_date DATETIME NOT NULL,
  return_date DATETIME,
  fine NUMERIC NOT NULL DEFAULT 0,
  return_status TEXT NOT NULL,
  return_request_status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_borrow_records_active
  ON borrow_records (user_id, book_id)
  WHERE return_request_status <> 'APPROVED';
CREATE TABLE IF NOT EXISTS feedbacks (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  comment TEXT NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS book_ratings (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  rating INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_book_ratings_book_user ON book_ratings (book_id, user_id);`
	require.NoError(t, conn.Exec(ddl).Error)
	return conn
}

func testRouterConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "0", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "lms-backend-test",
			ExpirationMinutes: 15,
		},
		Password: config.PasswordConfig{
			ArgonMemoryKB:    8 * 1024,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
		Lending: config.LendingConfig{BorrowFee: 20, LoanPeriodDays: 7, FinePerDay: 10},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB, *config.Config) {
	t.Helper()

	conn := setupRouterTestDB(t)
	cfg := testRouterConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Level: zerolog.Disabled, Output: io.Discard})

	usersRepo := usersvc.NewRepository(conn)
	booksRepo := booksvc.NewRepository(conn)
	recordsRepo := borrowsvc.NewRepository(conn)

	usersService, err := usersvc.NewService(usersRepo, cfg.Password)
	require.NoError(t, err)
	booksService, err := booksvc.NewService(booksRepo)
	require.NoError(t, err)
	borrowService, err := borrowsvc.NewService(borrowsvc.ServiceParams{
		Records: recordsRepo,
		Books:   booksRepo,
		Users:   usersRepo,
		Tx:      sqliteTxRunner{db: conn},
		Lending: cfg.Lending,
	})
	require.NoError(t, err)
	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Users:    usersRepo,
		JWT:      cfg.JWT,
		Password: cfg.Password,
	})
	require.NoError(t, err)
	feedbackService, err := feedbacksvc.NewService(feedbacksvc.ServiceParams{
		Feedback: feedbacksvc.NewRepository(conn),
		Users:    usersRepo,
	})
	require.NoError(t, err)
	ratingService, err := ratingsvc.NewService(ratingsvc.ServiceParams{
		Ratings: ratingsvc.NewRepository(conn),
		Books:   booksRepo,
	})
	require.NoError(t, err)
	statsService, err := statssvc.NewService(statssvc.NewRepository(conn))
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, map[string]controllers.Pinger{"db": stubPinger{}}, Services{
		Auth:       authService,
		Users:      usersService,
		Books:      booksService,
		Borrowing:  borrowService,
		Feedback:   feedbackService,
		Ratings:    ratingService,
		Statistics: statsService,
	})
	return handler, conn, cfg
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	return envelope.Data
}

func registerAndLogin(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	w := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "",
		fmt.Sprintf(`{"username":%q,"name":"Test Patron","password":%q}`, username, password))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeData(t, w)["token"].(string)
}

func adminToken(t *testing.T, handler http.Handler, conn *gorm.DB, cfg *config.Config) string {
	t.Helper()
	usersService, err := usersvc.NewService(usersvc.NewRepository(conn), cfg.Password)
	require.NoError(t, err)
	_, err = usersService.CreateUser(context.Background(), usersvc.CreateUserInput{
		Username: "librarian",
		Name:     "Head Librarian",
		Password: "bookstacks",
		Roles:    []string{"Admin"},
	})
	require.NoError(t, err)

	w := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "",
		`{"username":"librarian","password":"bookstacks"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeData(t, w)["token"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	w := doJSON(t, handler, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	for _, path := range []string{"/api/v1/books", "/api/v1/me", "/api/v1/users"} {
		w := doJSON(t, handler, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAdminRoutesRejectPatrons(t *testing.T) {
	handler, _, _ := newTestRouter(t)
	token := registerAndLogin(t, handler, "ada", "correcthorse")

	w := doJSON(t, handler, http.MethodPost, "/api/v1/books", token,
		`{"title":"Dune","author":"Frank Herbert","copies_available":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/statistics", token, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBorrowLifecycleOverHTTP(t *testing.T) {
	handler, conn, cfg := newTestRouter(t)
	patron := registerAndLogin(t, handler, "ada", "correcthorse")
	admin := adminToken(t, handler, conn, cfg)

	w := doJSON(t, handler, http.MethodPost, "/api/v1/books", admin,
		`{"title":"Dune","author":"Frank Herbert","genre":"Sci-Fi","copies_available":1}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bookID := decodeData(t, w)["id"].(string)

	// not enough funds yet
	w = doJSON(t, handler, http.MethodPost, "/api/v1/borrows", patron,
		fmt.Sprintf(`{"book_id":%q}`, bookID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	outcome := decodeData(t, w)
	assert.Equal(t, false, outcome["allowed"])
	assert.Equal(t, "Insufficient balance. Please add funds.", outcome["message"])

	w = doJSON(t, handler, http.MethodPost, "/api/v1/me/funds", patron, `{"amount":"100"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, handler, http.MethodPost, "/api/v1/borrows", patron,
		fmt.Sprintf(`{"book_id":%q}`, bookID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	outcome = decodeData(t, w)
	require.Equal(t, true, outcome["allowed"])
	record := outcome["record"].(map[string]any)
	borrowID := record["id"].(string)

	w = doJSON(t, handler, http.MethodPost, "/api/v1/borrows/"+borrowID+"/return-request", patron, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	outcome = decodeData(t, w)
	assert.Equal(t, true, outcome["allowed"])
	assert.Equal(t, "Return request sent to admin for approval.", outcome["message"])

	// approval is staff only
	w = doJSON(t, handler, http.MethodPost, "/api/v1/borrows/"+borrowID+"/approve", patron, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/api/v1/borrows/"+borrowID+"/approve", admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settled := decodeData(t, w)
	assert.Equal(t, "RETURNED", settled["return_status"])
	assert.Equal(t, "APPROVED", settled["return_request_status"])

	// double approval is a state conflict
	w = doJSON(t, handler, http.MethodPost, "/api/v1/borrows/"+borrowID+"/approve", admin, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/me/borrows", patron, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRatingsAndFeedbackOverHTTP(t *testing.T) {
	handler, conn, cfg := newTestRouter(t)
	patron := registerAndLogin(t, handler, "grace", "correcthorse")
	admin := adminToken(t, handler, conn, cfg)

	w := doJSON(t, handler, http.MethodPost, "/api/v1/books", admin,
		`{"title":"Emma","author":"Jane Austen","genre":"Romance","copies_available":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bookID := decodeData(t, w)["id"].(string)

	w = doJSON(t, handler, http.MethodPost, "/api/v1/books/"+bookID+"/ratings", patron, `{"rating":4}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, handler, http.MethodGet, "/api/v1/books/"+bookID+"/ratings/summary", patron, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, handler, http.MethodPost, "/api/v1/feedback", patron, `{"comment":"Lovely library."}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// listing feedback is staff only
	w = doJSON(t, handler, http.MethodGet, "/api/v1/feedback", patron, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/feedback", admin, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
