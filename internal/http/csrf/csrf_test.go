package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digitalnextlvl/agenda/internal/config"
)

func testMiddleware() http.Handler {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	return Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func issuedToken(t *testing.T, handler http.Handler) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, c := range rec.Result().Cookies() {
		if c.Name == "agenda_csrf" {
			return c
		}
	}
	t.Fatal("no csrf cookie issued")
	return nil
}

func TestIssuesTokenOnFirstRequest(t *testing.T) {
	handler := testMiddleware()
	cookie := issuedToken(t, handler)
	if cookie.Value == "" {
		t.Error("issued csrf cookie is empty")
	}
	if cookie.HttpOnly {
		t.Error("csrf cookie is HttpOnly; client scripts must be able to read it")
	}
}

// A cookie-session client has no server-rendered page to lift the token from:
// it reads the cookie and echoes it. That full round trip has to succeed.
func TestCookieSessionClientMutationFlow(t *testing.T) {
	handler := testMiddleware()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "agenda_csrf" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no csrf cookie issued")
	}
	if cookie.HttpOnly {
		t.Fatal("csrf cookie is HttpOnly, scripts cannot read it")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", cookie.Value)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for cookie-derived header", rec.Code)
	}
}

func TestMutatingRequestValidation(t *testing.T) {
	handler := testMiddleware()
	cookie := issuedToken(t, handler)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "matching header", header: cookie.Value, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusForbidden},
		{name: "wrong header", header: "not-the-token", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.AddCookie(cookie)
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestBearerRequestsExempt(t *testing.T) {
	handler := testMiddleware()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer 1.some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for bearer request", rec.Code)
	}
}

func TestGetRequestsPass(t *testing.T) {
	handler := testMiddleware()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
