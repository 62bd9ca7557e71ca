package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/geocoder89/linguadesk/internal/http/handlers"
	"github.com/geocoder89/linguadesk/internal/translate"
)

type fakeTranslator struct {
	calls int
	got   translate.Request
	fn    func(ctx context.Context, req translate.Request) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, req translate.Request) (string, error) {
	f.calls++
	f.got = req
	return f.fn(ctx, req)
}

func TestTranslateHandler(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           string
		upstreamErr    error
		wantStatusCode int
		wantCalls      int
		wantBody       string
	}{
		{name: "success", userID: "u1", body: `{"text":"Bonjour"}`, wantStatusCode: http.StatusOK, wantCalls: 1, wantBody: `"translation":"Hello translated"`},
		{name: "empty_text", userID: "u1", body: `{"text":""}`, wantStatusCode: http.StatusBadRequest, wantCalls: 0},
		{name: "absent_text", userID: "u1", body: `{"from":"fr"}`, wantStatusCode: http.StatusBadRequest, wantCalls: 0},
		{name: "unauthenticated", body: `{"text":"Bonjour"}`, wantStatusCode: http.StatusUnauthorized, wantCalls: 0},
		{
			name:           "upstream_failure",
			userID:         "u1",
			body:           `{"text":"Bonjour"}`,
			upstreamErr:    errors.New("openai: http 429: quota exceeded for org-123"),
			wantStatusCode: http.StatusInternalServerError,
			wantCalls:      1,
			wantBody:       `"message":"Translation failed"`,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranslator{fn: func(context.Context, translate.Request) (string, error) {
				if tt.upstreamErr != nil {
					return "", tt.upstreamErr
				}
				return "Hello translated", nil
			}}

			h := handlers.NewTranslateHandler(tr)
			r := setupRouter(http.MethodPost, "/translate", h.Translate, true)

			w := doJSON(r, http.MethodPost, "/translate", tt.userID, tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tr.calls != tt.wantCalls {
				t.Fatalf("translator calls = %d, want %d", tr.calls, tt.wantCalls)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("body %s does not contain %s", w.Body.String(), tt.wantBody)
			}
			if strings.Contains(w.Body.String(), "quota") {
				t.Fatalf("upstream detail leaked: %s", w.Body.String())
			}
			if tt.name == "success" && (tr.got.From != "fr" || tr.got.To != "en") {
				t.Fatalf("defaults not applied: %+v", tr.got)
			}
		})
	}
}
