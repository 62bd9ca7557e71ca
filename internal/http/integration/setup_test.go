package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/linguadesk/internal/auth"
	"github.com/geocoder89/linguadesk/internal/cache"
	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/db"
	apphttp "github.com/geocoder89/linguadesk/internal/http"
	"github.com/geocoder89/linguadesk/internal/http/handlers"
	"github.com/geocoder89/linguadesk/internal/observability"
	"github.com/geocoder89/linguadesk/internal/repo/memory"
	"github.com/geocoder89/linguadesk/internal/repo/postgres"
	"github.com/geocoder89/linguadesk/internal/share"
	"github.com/geocoder89/linguadesk/internal/translate"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		StoreDriver:         config.StoreDriverMemory,
		ShareCacheTTL:       time.Minute,
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		CORSAllowedOrigins:  []string{"http://localhost:3000"},
		MaxBodyBytes:        1 << 20,
		PublicRPS:           1000,
		PublicBurst:         1000,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// countingTranslator records calls so tests can assert the upstream was skipped.
type countingTranslator struct {
	calls int
}

func (c *countingTranslator) Translate(_ context.Context, req translate.Request) (string, error) {
	c.calls++
	return "[" + req.To + "] " + req.Text, nil
}

type testApp struct {
	router     *gin.Engine
	translator *countingTranslator
}

func baseDeps(cfg config.Config) (apphttp.Deps, *countingTranslator) {
	reg := prometheus.NewRegistry()
	tr := &countingTranslator{}

	return apphttp.Deps{
		Translator: tr,
		JWT:        auth.NewManager(cfg.JWTSecret, cfg.AccessTTL()),
		Prom:       observability.NewProm(reg),
		Gatherer:   reg,
	}, tr
}

func setupMemoryApp(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	deps, tr := baseDeps(cfg)

	docs := memory.NewDocumentsRepo()
	deps.Documents = docs
	deps.Meetings = memory.NewMeetRepo(docs)
	deps.Users = memory.NewUsersRepo()
	deps.Shares = share.NewResolver(docs, cache.New(cfg.ShareCacheTTL), cfg.ShareCacheTTL, deps.Prom, discardLogger())

	return testApp{router: apphttp.NewRouter(discardLogger(), deps, cfg), translator: tr}
}

// setupPostgresApp runs against TEST_DB_DSN and skips when it is unset.
func setupPostgresApp(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.ApplyMigrations(ctx, pool, "../../../migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	resetDB(t, pool)
	t.Cleanup(func() { resetDB(t, pool) })

	cfg := testConfig()
	cfg.StoreDriver = config.StoreDriverPostgres
	deps, tr := baseDeps(cfg)

	docs := postgres.NewDocumentsRepo(pool, deps.Prom)
	deps.Documents = docs
	deps.Meetings = postgres.NewMeetRepo(pool, deps.Prom)
	deps.Users = postgres.NewUsersRepo(pool, deps.Prom)
	deps.Shares = share.NewResolver(docs, cache.New(cfg.ShareCacheTTL), cfg.ShareCacheTTL, deps.Prom, discardLogger())
	deps.Checks = map[string]handlers.Pinger{"postgres": pool.Ping}

	return testApp{router: apphttp.NewRouter(discardLogger(), deps, cfg), translator: tr}
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `TRUNCATE meet_sessions, documents, users CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int, step string) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("%s: got status %d, want %d, body=%s", step, w.Code, want, w.Body.String())
	}
}

// signUpAndLogin returns an access token for a fresh account.
func signUpAndLogin(t *testing.T, router http.Handler, email, name string) string {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/auth/signup", "", `{"email":"`+email+`","password":"password123","name":"`+name+`"}`)
	expectStatus(t, w, http.StatusCreated, "signup "+email)

	w = doRequest(router, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"password123"}`)
	expectStatus(t, w, http.StatusOK, "login "+email)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	mustReadJSON(t, w, &body)

	if body.AccessToken == "" {
		t.Fatalf("login returned no access token")
	}
	return body.AccessToken
}
