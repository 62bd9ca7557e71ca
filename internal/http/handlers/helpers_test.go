package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/linguadesk/internal/auth"
	"github.com/geocoder89/linguadesk/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier accepts "Bearer <userID>" and turns it into an identity.
type fakeVerifier struct{}

func (fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if token == "" || token == "bad" {
		return nil, errors.New("invalid")
	}
	return &auth.Claims{UserID: token, Email: token + "@example.com", Name: "User " + token, Role: "TEACHER", TokenType: "access"}, nil
}

// small helper which mounts one handler per test, optionally behind RequireAuth
func setupRouter(method, path string, h gin.HandlerFunc, withAuth bool) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestID())

	if withAuth {
		r.Handle(method, path, middlewares.NewAuthMiddleware(fakeVerifier{}).RequireAuth(), h)
	} else {
		r.Handle(method, path, h)
	}

	return r
}

func doJSON(r http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+userID)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}
