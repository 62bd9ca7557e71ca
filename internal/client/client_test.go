package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/linguadesk/internal/domain/document"
)

func TestSaveDocument_SendsFullSnapshot(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAuth   string
		gotBody   map[string]json.RawMessage
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-1","title":""}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tkn"), WithHTTPClient(srv.Client()))

	pages := []document.Page{document.DefaultPage()}
	if err := c.SaveDocument(context.Background(), "doc-1", "", pages); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	if gotMethod != http.MethodPut || gotPath != "/docs/doc-1" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer tkn" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if string(gotBody["title"]) != `""` {
		t.Fatalf("title = %s, want explicit empty string", gotBody["title"])
	}
	if _, ok := gotBody["pages"]; !ok {
		t.Fatalf("pages missing from snapshot: %v", gotBody)
	}
	if _, ok := gotBody["generateShareToken"]; ok {
		t.Fatalf("generateShareToken should be omitted")
	}
}

func TestDo_DecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"document not found","requestId":"r1"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)

	_, err := c.GetDocument(context.Background(), "missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "not_found" || apiErr.Message != "document not found" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("404 should match ErrNotFound")
	}
}

func TestLogin_StoresToken(t *testing.T) {
	var secondAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"accessToken":"abc","user":{"id":"u1"}}`))
		case "/docs":
			secondAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Login(context.Background(), "a@b.co", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	docs, err := c.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("docs = %v", docs)
	}
	if secondAuth != "Bearer abc" {
		t.Fatalf("Authorization = %q", secondAuth)
	}
}
